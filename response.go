package inproc

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is what the host receives for one request: a status, headers and
// either a finite Body or an open Stream. Every Response the dispatcher
// returns has a non-zero Status and a non-nil Header.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Stream *Stream
}

func (*Response) reply() {}

// IsStream reports whether the body is an open stream.
func (r *Response) IsStream() bool { return r.Stream != nil }

// WithHeader sets a response header and returns r for chaining.
func (r *Response) WithHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
	return r
}

// Bytes returns a response with an arbitrary body and content type.
func Bytes(status int, contentType string, body []byte) *Response {
	h := make(http.Header)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &Response{Status: status, Header: h, Body: body}
}

// Text returns a text/plain response.
func Text(status int, body string) *Response {
	return Bytes(status, "text/plain; charset=utf-8", []byte(body))
}

// HTML returns a text/html response.
func HTML(status int, body string) *Response {
	return Bytes(status, "text/html; charset=utf-8", []byte(body))
}

// JSON returns an application/json response with v encoded as the body.
func JSON(status int, v any) (*Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return Bytes(status, "application/json", b), nil
}

// NoContent returns an empty 204 response.
func NoContent() *Response {
	return &Response{Status: http.StatusNoContent, Header: make(http.Header)}
}

// Redirect returns a redirect to url. A zero status uses 302 Found.
func Redirect(url string, status int) *Response {
	if status == 0 {
		status = http.StatusFound
	}
	return (&Response{Status: status}).WithHeader("Location", url)
}

// errorResponse renders a handler failure. The body is the error message
// only.
func errorResponse(err error) *Response {
	status := ErrorStatus(err)
	return Text(status, err.Error())
}

// emptyResponse is used where the dispatcher answers without a handler.
func emptyResponse(status int) *Response {
	return &Response{Status: status, Header: make(http.Header)}
}

// streamResponse wraps a handler's stream with the SSE response headers.
func streamResponse(s *Stream, status int, header http.Header) *Response {
	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "text/event-stream")
	}
	if h.Get("Cache-Control") == "" {
		h.Set("Cache-Control", "no-cache")
	}
	if h.Get("Connection") == "" {
		h.Set("Connection", "keep-alive")
	}
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{Status: status, Header: h, Stream: s}
}
