// Package request defines the mutable HTTP request value object and its
// wire serialization.
package request

import (
	"bytes"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"

	"github.com/webstress/webload/pkg/cookie"
)

// Supported request methods.
const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// Header is a single name/value pair. Request and client-level header
// collections preserve insertion order.
type Header struct {
	Name  string
	Value string
}

// Param is an ordered request parameter. A Param with an empty Name
// contributes only its raw Value when the parameter string is rendered.
type Param struct {
	Name  string
	Value string
}

// BasicAuth carries credentials for a Basic authorization header.
type BasicAuth struct {
	User     string
	Password string
}

// Encode renders the credentials as a base64 "user:password" token.
func (a BasicAuth) Encode() string {
	return base64.StdEncoding.EncodeToString([]byte(a.User + ":" + a.Password))
}

// Settings captures the client-level state that influences serialization.
// Serialization is deterministic given (Request, Settings).
type Settings struct {
	// ViaProxy rewrites the request target to the absolute URL, as required
	// when forwarding plain HTTP through a proxy.
	ViaProxy bool
	// KeepAlive selects the Connection header value.
	KeepAlive bool
	// AcceptGZIP adds Accept-Encoding: gzip.
	AcceptGZIP bool
	// CommonHeaders are client-wide headers, applied only for names the
	// request does not set itself.
	CommonHeaders []Header
	// ProxyAuth and OriginAuth add Basic authorization headers when non-nil.
	ProxyAuth  *BasicAuth
	OriginAuth *BasicAuth
	// Cookies are folded into a single Cookie header, in order.
	Cookies []*cookie.Cookie
}

// Request captures one logical HTTP operation: method, target URL, ordered
// headers, ordered parameters, and an optional literal body.
type Request struct {
	Method string
	URL    *url.URL

	headers []Header
	params  []Param

	// Body is used for POST requests only, and only when no parameters
	// have been added.
	Body string
}

// New creates a request for the given method and URL. An empty URL path is
// normalized to "/".
func New(method string, u *url.URL) *Request {
	if u.Path == "" {
		copied := *u
		copied.Path = "/"
		u = &copied
	}
	return &Request{Method: method, URL: u}
}

// IsGet reports whether this is a GET request.
func (r *Request) IsGet() bool {
	return r.Method == MethodGet
}

// SetHeader adds the header, replacing any existing header with the same
// name (case-insensitive).
func (r *Request) SetHeader(name, value string) {
	for i, h := range r.headers {
		if strings.EqualFold(h.Name, name) {
			r.headers[i].Value = value
			return
		}
	}
	r.headers = append(r.headers, Header{Name: name, Value: value})
}

// GetHeader returns the value of the named header, or "" if unset.
func (r *Request) GetHeader(name string) string {
	for _, h := range r.headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// HasHeader reports whether the named header is set.
func (r *Request) HasHeader(name string) bool {
	for _, h := range r.headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

// RemoveHeader deletes the named header.
func (r *Request) RemoveHeader(name string) {
	for i, h := range r.headers {
		if strings.EqualFold(h.Name, name) {
			r.headers = append(r.headers[:i], r.headers[i+1:]...)
			return
		}
	}
}

// ClearHeaders removes all request headers.
func (r *Request) ClearHeaders() {
	r.headers = nil
}

// Headers returns the request headers in insertion order.
func (r *Request) Headers() []Header {
	out := make([]Header, len(r.headers))
	copy(out, r.headers)
	return out
}

// AddParameter appends a parameter. Duplicate names are allowed.
func (r *Request) AddParameter(name, value string) {
	r.params = append(r.params, Param{Name: name, Value: value})
}

// AddEncodedParameter appends a parameter whose value is already
// URL-encoded. The value is decoded on insert and re-encoded during
// serialization.
func (r *Request) AddEncodedParameter(name, value string) error {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return err
	}
	r.params = append(r.params, Param{Name: name, Value: decoded})
	return nil
}

// ParameterValue returns the first value for the named parameter, or ""
// if none exists.
func (r *Request) ParameterValue(name string) string {
	for _, p := range r.params {
		if strings.EqualFold(p.Name, name) {
			return p.Value
		}
	}
	return ""
}

// ParameterValues returns every value recorded for the named parameter.
func (r *Request) ParameterValues(name string) []string {
	var values []string
	for _, p := range r.params {
		if strings.EqualFold(p.Name, name) {
			values = append(values, p.Value)
		}
	}
	return values
}

// ReplaceParameter removes every value for the named parameter and adds
// the provided one.
func (r *Request) ReplaceParameter(name, value string) {
	r.RemoveParameter(name)
	r.params = append(r.params, Param{Name: name, Value: value})
}

// RemoveParameter deletes every value for the named parameter.
func (r *Request) RemoveParameter(name string) {
	kept := r.params[:0]
	for _, p := range r.params {
		if !strings.EqualFold(p.Name, name) {
			kept = append(kept, p)
		}
	}
	r.params = kept
}

// RemoveParameterValue deletes the first parameter matching both name and
// value.
func (r *Request) RemoveParameterValue(name, value string) {
	for i, p := range r.params {
		if strings.EqualFold(p.Name, name) && strings.EqualFold(p.Value, value) {
			r.params = append(r.params[:i], r.params[i+1:]...)
			return
		}
	}
}

// ClearParameters removes every parameter.
func (r *Request) ClearParameters() {
	r.params = nil
}

// Parameters returns the parameters in insertion order.
func (r *Request) Parameters() []Param {
	out := make([]Param, len(r.params))
	copy(out, r.params)
	return out
}

// Clone copies the request onto a new target URL, preserving parameters
// and headers. A nil URL keeps the original target. Used when following
// redirects and when fetching associated files.
func (r *Request) Clone(u *url.URL) *Request {
	if u == nil {
		u = r.URL
	}
	clone := New(r.Method, u)
	clone.params = append([]Param(nil), r.params...)
	clone.headers = append([]Header(nil), r.headers...)
	clone.Body = r.Body
	return clone
}

// EncodeValue escapes a parameter value for inclusion in a request.
func EncodeValue(value string) string {
	return url.QueryEscape(value)
}

// paramString renders the ordered parameters as an urlencoded body.
// Entries with an empty name contribute their raw value unencoded.
func (r *Request) paramString() string {
	var b strings.Builder
	for i, p := range r.params {
		if i > 0 {
			b.WriteByte('&')
		}
		if p.Name == "" {
			b.WriteString(p.Value)
		} else {
			b.WriteString(p.Name)
			b.WriteByte('=')
			b.WriteString(EncodeValue(p.Value))
		}
	}
	return b.String()
}

// Marshal produces the exact request-line + headers + body bytes to write
// to the transport.
func (r *Request) Marshal(s Settings) []byte {
	var buf bytes.Buffer

	target := r.URL.RequestURI()
	if s.ViaProxy {
		target = r.URL.String()
	}

	body := ""
	if r.IsGet() {
		buf.WriteString(MethodGet)
		buf.WriteByte(' ')
		buf.WriteString(target)
		if len(r.params) > 0 {
			sep := byte('?')
			if r.URL.RawQuery != "" {
				sep = '&'
			}
			for _, p := range r.params {
				buf.WriteByte(sep)
				sep = '&'
				buf.WriteString(p.Name)
				buf.WriteByte('=')
				buf.WriteString(EncodeValue(p.Value))
			}
		}
		buf.WriteString(" HTTP/1.1\r\n")
	} else {
		buf.WriteString(r.Method)
		buf.WriteByte(' ')
		buf.WriteString(target)
		buf.WriteString(" HTTP/1.1\r\n")

		if len(r.params) > 0 {
			body = r.paramString()
		} else {
			body = r.Body
		}
	}

	buf.WriteString("Host: ")
	buf.WriteString(r.URL.Hostname())
	if port := r.URL.Port(); port != "" {
		buf.WriteByte(':')
		buf.WriteString(port)
	}
	buf.WriteString("\r\n")

	if s.KeepAlive {
		buf.WriteString("Connection: Keep-Alive\r\n")
	} else {
		buf.WriteString("Connection: Close\r\n")
	}

	if s.AcceptGZIP {
		buf.WriteString("Accept-Encoding: gzip\r\n")
	}

	if body != "" {
		buf.WriteString("Content-Length: ")
		buf.WriteString(strconv.Itoa(len(body)))
		buf.WriteString("\r\n")
	}

	hasContentType := false
	for _, h := range s.CommonHeaders {
		if strings.EqualFold(h.Name, "content-type") {
			hasContentType = true
		}
		if r.HasHeader(h.Name) {
			continue
		}
		buf.WriteString(h.Name)
		buf.WriteString(": ")
		buf.WriteString(h.Value)
		buf.WriteString("\r\n")
	}

	for _, h := range r.headers {
		if strings.EqualFold(h.Name, "content-type") {
			hasContentType = true
		}
		buf.WriteString(h.Name)
		buf.WriteString(": ")
		buf.WriteString(h.Value)
		buf.WriteString("\r\n")
	}

	if !r.IsGet() && !hasContentType {
		buf.WriteString("Content-Type: application/x-www-form-urlencoded\r\n")
	}

	if s.ProxyAuth != nil {
		buf.WriteString("Proxy-Authorization: Basic ")
		buf.WriteString(s.ProxyAuth.Encode())
		buf.WriteString("\r\n")
	}
	if s.OriginAuth != nil {
		buf.WriteString("Authorization: Basic ")
		buf.WriteString(s.OriginAuth.Encode())
		buf.WriteString("\r\n")
	}

	if len(s.Cookies) > 0 {
		buf.WriteString("Cookie: ")
		for i, c := range s.Cookies {
			if i > 0 {
				buf.WriteString("; ")
			}
			buf.WriteString(c.Name)
			buf.WriteByte('=')
			buf.WriteString(c.Value)
		}
		buf.WriteString("\r\n")
	}

	buf.WriteString("\r\n")
	buf.WriteString(body)

	return buf.Bytes()
}
