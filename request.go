package inproc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/elnormous/contenttype"
	"github.com/starfederation/datastar-go/datastar"
)

// maxMultipartMemory is the maximum memory used for multipart form parsing (32 MB).
const maxMultipartMemory = 32 << 20

// Request is the uniform, immutable view of one intercepted request. Body
// accessors are lazy and memoized: the body source is read at most once and
// every later call is served from the cached result.
type Request struct {
	ctx    context.Context
	id     string
	method string
	url    *url.URL
	query  Params
	header http.Header

	body  io.Reader
	limit int64

	rawOnce sync.Once
	raw     []byte
	rawErr  error

	jsonOnce sync.Once
	jsonVal  any
	jsonErr  error

	formOnce sync.Once
	form     url.Values
	formErr  error
}

// NewRequest builds a Request from raw host fields. ctx is the host's abort
// signal and is shared, not copied: cancelling it aborts the request. A nil
// body is treated as empty.
func NewRequest(ctx context.Context, method, rawURL string, header http.Header, body io.Reader) (*Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Opaque != "" {
		return nil, fmt.Errorf("parse url: %q has no path", rawURL)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	if body == nil {
		body = http.NoBody
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		ctx:    ctx,
		id:     requestID(h),
		method: strings.ToUpper(method),
		url:    u,
		query:  ParseParams(u.RawQuery),
		header: h,
		body:   body,
	}, nil
}

// ID returns the request id: the X-Request-ID header when the host sent one,
// otherwise a generated uuid.
func (r *Request) ID() string { return r.id }

// Method returns the upper-cased request method.
func (r *Request) Method() string { return r.method }

// Path returns the URL path without the query string.
func (r *Request) Path() string { return r.url.Path }

// URL returns a copy of the matched request URL.
func (r *Request) URL() *url.URL {
	u := *r.url
	return &u
}

// Query returns the query parameters in wire order.
func (r *Request) Query() Params { return r.query }

// Header returns the first value of the named header. Lookup is
// case-insensitive.
func (r *Request) Header(name string) string { return r.header.Get(name) }

// Headers returns a copy of all request headers.
func (r *Request) Headers() http.Header { return r.header.Clone() }

// Context returns the host context. It is done when the host aborts.
func (r *Request) Context() context.Context { return r.ctx }

// Done is closed when the host drops the request.
func (r *Request) Done() <-chan struct{} { return r.ctx.Done() }

// Aborted reports whether the host has dropped the request.
func (r *Request) Aborted() bool { return r.ctx.Err() != nil }

// OnAbort arranges for fn to run once, in its own goroutine, when the host
// drops the request. The returned stop func unregisters fn and reports
// whether it did so before fn was started.
func (r *Request) OnAbort(fn func()) (stop func() bool) {
	return context.AfterFunc(r.ctx, fn)
}

// Bytes returns the raw body.
func (r *Request) Bytes() ([]byte, error) {
	r.rawOnce.Do(func() {
		src := r.body
		if r.limit > 0 {
			src = io.LimitReader(src, r.limit+1)
		}
		b, err := io.ReadAll(src)
		if err != nil {
			r.rawErr = &ParseError{Kind: ParseBody, Err: err}
			return
		}
		if r.limit > 0 && int64(len(b)) > r.limit {
			r.rawErr = &ParseError{Kind: ParseBody, Err: fmt.Errorf("body exceeds %d bytes", r.limit)}
			return
		}
		r.raw = b
	})
	return r.raw, r.rawErr
}

// Text returns the body as a string.
func (r *Request) Text() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// JSON parses the body as JSON into the generic decoded form (maps, slices,
// float64, string, bool, nil).
func (r *Request) JSON() (any, error) {
	r.jsonOnce.Do(func() {
		b, err := r.Bytes()
		if err != nil {
			r.jsonErr = err
			return
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			r.jsonErr = &ParseError{Kind: ParseJSON, Err: err}
			return
		}
		r.jsonVal = v
	})
	return r.jsonVal, r.jsonErr
}

// DecodeJSON unmarshals the body into v.
func (r *Request) DecodeJSON(v any) error {
	b, err := r.Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return &ParseError{Kind: ParseJSON, Err: err}
	}
	return nil
}

// Form parses the body as application/x-www-form-urlencoded or
// multipart/form-data. Any other content type is a ParseError.
func (r *Request) Form() (url.Values, error) {
	r.formOnce.Do(func() {
		r.form, r.formErr = r.parseForm()
	})
	return r.form, r.formErr
}

func (r *Request) parseForm() (url.Values, error) {
	b, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	hr, err := r.httpRequest(b)
	if err != nil {
		return nil, &ParseError{Kind: ParseForm, Err: err}
	}

	mt, err := contenttype.GetMediaType(hr)
	if err != nil {
		return nil, &ParseError{Kind: ParseForm, Err: err}
	}

	switch mt.Type + "/" + mt.Subtype {
	case "application/x-www-form-urlencoded":
		if err := hr.ParseForm(); err != nil {
			return nil, &ParseError{Kind: ParseForm, Err: err}
		}
		return hr.PostForm, nil
	case "multipart/form-data":
		if err := hr.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, &ParseError{Kind: ParseForm, Err: err}
		}
		return url.Values(hr.MultipartForm.Value), nil
	default:
		return nil, &ParseError{Kind: ParseForm, Err: fmt.Errorf("unsupported content type %q", r.Header("Content-Type"))}
	}
}

// Signals decodes datastar client signals into v. GET and DELETE requests
// carry them in the "datastar" query parameter, other methods in the body.
func (r *Request) Signals(v any) error {
	var b []byte
	if r.method != http.MethodGet && r.method != http.MethodDelete {
		var err error
		if b, err = r.Bytes(); err != nil {
			return err
		}
	}
	hr, err := r.httpRequest(b)
	if err != nil {
		return &ParseError{Kind: ParseSignals, Err: err}
	}
	if r.method == http.MethodDelete {
		// datastar only reads the query for GET.
		hr.Method = http.MethodGet
	}
	if err := datastar.ReadSignals(hr, v); err != nil {
		return &ParseError{Kind: ParseSignals, Err: err}
	}
	return nil
}

// httpRequest rebuilds an *http.Request over the cached body for libraries
// that only accept the net/http type.
func (r *Request) httpRequest(body []byte) (*http.Request, error) {
	hr, err := http.NewRequestWithContext(r.ctx, r.method, r.url.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hr.Header = r.header.Clone()
	return hr, nil
}

// withBodyLimit applies a route's body limit before the handler first sees
// the request.
func (r *Request) withBodyLimit(n int64) {
	if n > 0 {
		r.limit = n
	}
}

// isParseError reports whether err came from a body accessor.
func isParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
