// Package webload is a load-generation HTTP engine built on a raw-socket
// HTTP/1.1 client: hand-rolled response framing, cookie tracking, redirect
// following, proxy support, and a worker-based load driver on top.
package webload

import (
	"context"
	"net/url"

	"github.com/webstress/webload/pkg/client"
	"github.com/webstress/webload/pkg/cookie"
	"github.com/webstress/webload/pkg/errors"
	"github.com/webstress/webload/pkg/htmldoc"
	"github.com/webstress/webload/pkg/loadgen"
	"github.com/webstress/webload/pkg/request"
	"github.com/webstress/webload/pkg/response"
)

// Version is the current version of the webload library.
const Version = "1.0.0"

// Re-export key types for easier usage
type (
	// Client performs HTTP exchanges over raw sockets.
	Client = client.Client

	// Request is a mutable HTTP request.
	Request = request.Request

	// Response is a parsed HTTP response.
	Response = response.Response

	// Cookie is a single tracked cookie.
	Cookie = cookie.Cookie

	// Jar is a client-owned cookie store.
	Jar = cookie.Jar

	// BasicAuth carries credentials for a Basic authorization header.
	BasicAuth = request.BasicAuth

	// Stats holds a client's trackers.
	Stats = client.Stats

	// Job describes one load run.
	Job = loadgen.Job

	// Result aggregates a finished load run.
	Result = loadgen.Result

	// HTMLDocument is a parsed HTML page.
	HTMLDocument = htmldoc.Document

	// Error is a structured error with a kind and connection context.
	Error = errors.Error
)

// Re-export error kinds for convenience
const (
	KindConnect    = errors.KindConnect
	KindIO         = errors.KindIO
	KindParse      = errors.KindParse
	KindCookie     = errors.KindCookie
	KindRedirect   = errors.KindRedirect
	KindValidation = errors.KindValidation
)

// NewClient returns a client with keep-alive, redirect following, gzip,
// and cookie tracking enabled.
func NewClient() *Client {
	return client.New()
}

// NewRequest creates a request for the given method and URL string.
func NewRequest(method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.NewValidationError("invalid URL: " + err.Error())
	}
	return request.New(method, u), nil
}

// Get performs a one-shot GET with a throwaway client.
func Get(rawURL string) (*Response, error) {
	req, err := NewRequest(request.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	c := client.New()
	defer c.Close()
	return c.Send(req)
}

// Run executes a load job and blocks until every worker has stopped.
func Run(ctx context.Context, job Job) (*Result, error) {
	return loadgen.Run(ctx, job)
}

// GetErrorKind returns the error kind if err is a structured error.
func GetErrorKind(err error) string {
	return string(errors.GetKind(err))
}

// IsTimeoutError checks whether an error is a timeout.
func IsTimeoutError(err error) bool {
	return errors.IsTimeout(err)
}
