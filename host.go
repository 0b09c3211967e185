package inproc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HostRequest carries the raw fields a host hands over for one request.
type HostRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader
}

// Serve adapts a raw host request and dispatches it. ctx is the host's abort
// signal for the request. A URL that does not parse is answered with 400.
func (r *Router) Serve(ctx context.Context, hr HostRequest) *Response {
	req, err := NewRequest(ctx, hr.Method, hr.URL, hr.Header, hr.Body)
	if err != nil {
		return Text(http.StatusBadRequest, err.Error())
	}
	return r.Dispatch(req)
}

// Transport returns an http.RoundTripper that serves requests for the
// registered schemes in-process, without a socket. Calling it seals the
// route table.
//
// The request context is the abort signal: cancelling it closes a streamed
// response. Closing a streamed response body destroys the stream, and the hub
// drops the connection.
func (r *Router) Transport() http.RoundTripper {
	r.seal()
	return &transport{router: r}
}

type transport struct {
	router *Router
}

func (t *transport) RoundTrip(hr *http.Request) (*http.Response, error) {
	var body []byte
	if hr.Body != nil {
		b, err := io.ReadAll(hr.Body)
		//nolint:errcheck // a RoundTripper must close the request body
		hr.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		body = b
	}

	if t.router.closed.Load() {
		return nil, ErrClosed
	}
	if !t.router.schemes.has(hr.URL.Scheme) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, hr.URL.Scheme)
	}

	req, err := NewRequest(hr.Context(), hr.Method, hr.URL.String(), hr.Header, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	resp := t.router.Dispatch(req)

	out := &http.Response{
		Status:     fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status)),
		StatusCode: resp.Status,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     resp.Header,
		Request:    hr,
	}
	if resp.Stream != nil {
		s := resp.Stream
		out.Body = &streamBody{
			stream: s,
			stop:   context.AfterFunc(hr.Context(), func() { s.Close() }),
		}
		out.ContentLength = -1
		return out, nil
	}
	out.Body = io.NopCloser(bytes.NewReader(resp.Body))
	out.ContentLength = int64(len(resp.Body))
	return out, nil
}

// streamBody is the response body of a streamed reply.
type streamBody struct {
	stream *Stream
	stop   func() bool
}

func (b *streamBody) Read(p []byte) (int, error) { return b.stream.Read(p) }

func (b *streamBody) Close() error {
	b.stop()
	return b.stream.Close()
}
