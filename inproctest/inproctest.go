// Package inproctest provides typed test helpers for inproc routers. Requests
// go through the router's Transport, the same path a host uses, so no socket
// is opened.
package inproctest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"testing"

	"github.com/bjaus/inproc"
)

// DefaultScheme is the scheme NewClient registers when none is given.
const DefaultScheme = "test"

// Client issues requests against a router through its Transport.
type Client struct {
	Router *inproc.Router
	HTTP   *http.Client
	Base   string
}

// NewClient registers scheme on r (DefaultScheme when empty) unless it is
// already registered, and returns a client for "<scheme>://local". The
// router is closed when the test ends.
func NewClient(t testing.TB, r *inproc.Router, scheme string) *Client {
	t.Helper()
	if scheme == "" {
		scheme = DefaultScheme
	}
	if !slices.Contains(r.Schemes(), scheme) {
		if err := r.RegisterScheme(scheme); err != nil {
			t.Fatalf("inproctest: register scheme: %v", err)
		}
	}
	t.Cleanup(func() {
		if err := r.Close(); err != nil && !errors.Is(err, inproc.ErrClosed) {
			t.Errorf("inproctest: close router: %v", err)
		}
	})
	return &Client{
		Router: r,
		HTTP:   &http.Client{Transport: r.Transport()},
		Base:   scheme + "://local",
	}
}

// Response holds a decoded response.
type Response[T any] struct {
	Status  int
	Headers http.Header
	Body    *T
	Raw     []byte
}

// Get sends a typed GET request.
func Get[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodGet, path, nil)
}

// Post sends a typed POST request with a JSON body.
func Post[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPost, path, body)
}

// Put sends a typed PUT request with a JSON body.
func Put[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPut, path, body)
}

// Patch sends a typed PATCH request with a JSON body.
func Patch[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPatch, path, body)
}

// Delete sends a typed DELETE request.
func Delete[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodDelete, path, nil)
}

// Do sends a raw request and returns the status, headers and full body.
func (c *Client) Do(t testing.TB, method, path string, header http.Header, body io.Reader) (int, http.Header, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, c.Base+path, body)
	if err != nil {
		t.Fatalf("inproctest: create request: %v", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		t.Fatalf("inproctest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("inproctest: close body: %v", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("inproctest: read body: %v", err)
	}
	return resp.StatusCode, resp.Header, raw
}

func do[Resp any](t testing.TB, c *Client, method, path string, body any) *Response[Resp] {
	t.Helper()

	var (
		reqBody io.Reader
		header  http.Header
	)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("inproctest: marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(b)
		header = http.Header{"Content-Type": {"application/json"}}
	}

	status, headers, raw := c.Do(t, method, path, header, reqBody)
	result := &Response[Resp]{
		Status:  status,
		Headers: headers,
		Raw:     raw,
	}

	if status != http.StatusNoContent && len(raw) > 0 {
		var decoded Resp
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return result
		}
		result.Body = &decoded
	}
	return result
}
