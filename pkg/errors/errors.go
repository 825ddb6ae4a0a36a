// Package errors provides structured error types for the webload engine.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind represents the category of error that occurred.
type Kind string

const (
	// KindConnect represents dial, TLS handshake, or proxy CONNECT failures.
	KindConnect Kind = "connect"
	// KindIO represents read/write failures mid-exchange, including
	// unexpected EOF while header or chunk data was expected.
	KindIO Kind = "io"
	// KindParse represents malformed status lines, header lines, chunk-size
	// lines, or ambiguous body framing.
	KindParse Kind = "parse"
	// KindCookie represents a malformed Set-Cookie value. Non-fatal: the
	// cookie is dropped and processing continues.
	KindCookie Kind = "cookie"
	// KindRedirect represents a malformed Location URL or an over-long
	// redirect chain.
	KindRedirect Kind = "redirect"
	// KindValidation represents invalid client configuration or requests.
	KindValidation Kind = "validation"
)

// Error is the single outward-facing error type. ConnKey carries the
// connection-cache key of the exchange so callers can tell network-layer
// from protocol-layer problems.
type Error struct {
	Kind    Kind
	Message string
	ConnKey string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.ConnKey != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.ConnKey)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches against another *Error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithConnKey annotates the error with the connection key of the exchange.
// Errors that already carry a key are left alone.
func WithConnKey(err error, key string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.ConnKey == "" {
			e.ConnKey = key
		}
		return err
	}
	return &Error{Kind: KindIO, Message: "exchange failed", ConnKey: key, Cause: err}
}

// NewConnectError creates a connection-establishment error.
func NewConnectError(connKey string, cause error) *Error {
	return &Error{
		Kind:    KindConnect,
		Message: "unable to establish connection",
		ConnKey: connKey,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error for the named operation.
func NewIOError(operation string, cause error) *Error {
	return &Error{
		Kind:    KindIO,
		Message: "I/O error during " + operation,
		Cause:   cause,
	}
}

// NewParseError creates a protocol parse error.
func NewParseError(message string, cause error) *Error {
	return &Error{
		Kind:    KindParse,
		Message: message,
		Cause:   cause,
	}
}

// NewCookieError creates a cookie parse error.
func NewCookieError(message string, cause error) *Error {
	return &Error{
		Kind:    KindCookie,
		Message: message,
		Cause:   cause,
	}
}

// NewRedirectError creates a redirect-following error.
func NewRedirectError(location string, cause error) *Error {
	return &Error{
		Kind:    KindRedirect,
		Message: "unable to follow redirect to " + location,
		Cause:   cause,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
	}
}

// GetKind returns the error kind if it is a structured error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTimeout checks whether an error is a timeout, unwrapping structured
// errors down to the net layer.
func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
