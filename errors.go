package inproc

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors.
var (
	ErrRouteNotFound     = errors.New("route not found")
	ErrClosed            = errors.New("router closed")
	ErrStreamClosed      = errors.New("stream closed")
	ErrStreamFull        = errors.New("stream window full")
	ErrUnknownScheme     = errors.New("unknown scheme")
	ErrUnknownConnection = errors.New("unknown connection")
)

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ParseKind names the body decoding that failed.
type ParseKind string

// Body decodings that can produce a ParseError.
const (
	ParseBody    ParseKind = "body"
	ParseJSON    ParseKind = "json"
	ParseForm    ParseKind = "form"
	ParseSignals ParseKind = "signals"
)

// ParseError is returned by the Request body accessors when the body does not
// match the requested decoding. The handler decides whether it is fatal.
type ParseError struct {
	Kind ParseKind
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StatusCode reports 400 so a handler may return a ParseError unchanged.
func (e *ParseError) StatusCode() int { return http.StatusBadRequest }

// ConfigError reports a programming mistake made while wiring the router:
// duplicate schemes, bad route paths, registering after interception started.
type ConfigError struct {
	Op     string
	Detail string
}

func (e *ConfigError) Error() string {
	return "inproc: " + e.Op + ": " + e.Detail
}

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	return http.StatusInternalServerError
}
