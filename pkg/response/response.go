// Package response defines the HTTP response value object assembled by the
// reader: status line, ordered header multimap, decoded body bytes, and a
// lazily parsed HTML document view.
package response

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/webstress/webload/pkg/errors"
	"github.com/webstress/webload/pkg/htmldoc"
)

type header struct {
	name  string // lowercased
	value string
}

// Response is an HTTP response returned by a server. Headers keep their
// arrival order and may repeat (for example multiple Set-Cookie headers).
type Response struct {
	RequestURL      *url.URL
	StatusCode      int
	ProtocolVersion string
	Message         string

	headers      []header
	cookieValues []string

	// ContentLength is the parsed Content-Length header, or -1 when the
	// header is absent or unparsable.
	ContentLength int
	// ContentType is the Content-Type header value, or "" when absent.
	ContentType string

	body    []byte
	htmlDoc *htmldoc.Document
}

// New creates a response for the given status line components.
func New(requestURL *url.URL, statusCode int, protocolVersion, message string) *Response {
	return &Response{
		RequestURL:      requestURL,
		StatusCode:      statusCode,
		ProtocolVersion: protocolVersion,
		Message:         message,
		ContentLength:   -1,
		body:            []byte{},
	}
}

// AddHeader records a header. Content-Length, Content-Type, and Set-Cookie
// are cached as they arrive.
func (r *Response) AddHeader(name, value string) {
	lower := strings.ToLower(name)
	r.headers = append(r.headers, header{name: lower, value: value})

	switch lower {
	case "content-length":
		if n, err := strconv.Atoi(value); err == nil {
			// Negative lengths frame an empty body.
			if n < 0 {
				n = 0
			}
			r.ContentLength = n
		}
	case "content-type":
		r.ContentType = value
	case "set-cookie":
		r.cookieValues = append(r.cookieValues, value)
	}
}

// Header returns the first value of the named header, or "" if absent.
func (r *Response) Header(name string) string {
	lower := strings.ToLower(name)
	for _, h := range r.headers {
		if h.name == lower {
			return h.value
		}
	}
	return ""
}

// HeaderValues returns every value recorded for the named header.
func (r *Response) HeaderValues(name string) []string {
	lower := strings.ToLower(name)
	var values []string
	for _, h := range r.headers {
		if h.name == lower {
			values = append(values, h.value)
		}
	}
	return values
}

// Headers returns all header name/value pairs in arrival order, names
// lowercased.
func (r *Response) Headers() [][2]string {
	out := make([][2]string, len(r.headers))
	for i, h := range r.headers {
		out[i] = [2]string{h.name, h.value}
	}
	return out
}

// CookieValues returns the raw Set-Cookie values carried by this response.
func (r *Response) CookieValues() []string {
	out := make([]string, len(r.cookieValues))
	copy(out, r.cookieValues)
	return out
}

// SetBody stores the response body. When the Content-Encoding header
// contains "gzip" the data is decompressed first; a decode failure is an
// error and the compressed bytes are never stored silently.
func (r *Response) SetBody(data []byte) error {
	if data == nil {
		r.body = []byte{}
		return nil
	}

	if enc := strings.ToLower(r.Header("content-encoding")); strings.Contains(enc, "gzip") {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return errors.NewIOError("gzip decompression", err)
		}
		decoded, err := io.ReadAll(zr)
		if err != nil {
			return errors.NewIOError("gzip decompression", err)
		}
		if err := zr.Close(); err != nil {
			return errors.NewIOError("gzip decompression", err)
		}
		r.body = decoded
		return nil
	}

	r.body = data
	return nil
}

// Body returns the (post-decompression) body bytes. It is never nil.
func (r *Response) Body() []byte {
	return r.body
}

// HTMLDocument lazily parses the body as an HTML document when the content
// type indicates text/html. It returns nil when the response is not HTML
// or cannot be parsed.
func (r *Response) HTMLDocument() *htmldoc.Document {
	if r.htmlDoc == nil && strings.Contains(strings.ToLower(r.ContentType), "text/html") {
		doc, err := htmldoc.Parse(r.RequestURL.String(), string(r.body))
		if err == nil {
			r.htmlDoc = doc
		}
	}
	return r.htmlDoc
}
