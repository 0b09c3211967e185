package inproc

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Dispatch resolves req against the route table, invokes the matching
// handler exactly once, and turns its result into a Response. It never
// returns nil and never panics on handler failure.
//
//   - closed router: 503, empty body
//   - no route for (method, path): 404, empty body, no handler invoked
//   - rate limited: 429 with Retry-After
//   - handler error or panic: ErrorStatus(err) with err.Error() as text/plain
//   - nil reply: 204
//   - *Response: copied, status defaults to 200
//   - *Stream: 200 with the event-stream headers, body unbuffered
//
// The ctx passed to the handler carries the request id and matched route and
// is cancelled when a WithTimeout deadline passes. Work that outlives the
// handler call (a stream writer goroutine) should watch req.Done instead.
func (r *Router) Dispatch(req *Request) *Response {
	start := time.Now()

	if r.closed.Load() {
		resp := emptyResponse(http.StatusServiceUnavailable)
		r.logDispatch(req.Context(), req, resp, time.Since(start), nil)
		return resp
	}
	r.seal()

	e, ok := r.routes.resolve(req.Method(), req.Path())
	if !ok {
		resp := emptyResponse(http.StatusNotFound)
		r.logDispatch(req.Context(), req, resp, time.Since(start), nil)
		return resp
	}

	if e.limiter != nil && !e.limiter.allow(req) {
		resp := e.limiter.limitedResponse()
		r.logDispatch(req.Context(), req, resp, time.Since(start), nil)
		return resp
	}

	ctx := withRequestID(req.Context(), req.ID())
	ctx = SetValue(ctx, e.info)
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if e.bodyLimit > 0 {
		req.withBodyLimit(e.bodyLimit)
	}
	if r.tracer != nil {
		var end func()
		ctx, end = r.tracer.StartSpan(ctx, e.info.String(), map[string]string{
			"http.method": e.info.Method,
			"http.route":  e.info.Path,
			"request.id":  req.ID(),
		})
		defer end()
	}

	reply, err := r.invoke(ctx, r.wrap(e.handler), req)
	if err != nil {
		// A failed handler leaves no connections behind.
		r.hub.closeFor(req)
	}
	resp := toResponse(reply, err)
	r.logDispatch(ctx, req, resp, time.Since(start), err)
	return resp
}

// toResponse normalizes a handler result. Every returned Response has a
// status and a non-nil header.
func toResponse(reply Reply, err error) *Response {
	if err != nil {
		return errorResponse(err)
	}
	switch v := reply.(type) {
	case nil:
		return NoContent()
	case *Response:
		if v == nil {
			return NoContent()
		}
		if v.Stream != nil {
			return streamResponse(v.Stream, v.Status, v.Header)
		}
		out := *v
		out.Header = v.Header.Clone()
		if out.Header == nil {
			out.Header = make(http.Header)
		}
		if out.Status == 0 {
			out.Status = http.StatusOK
		}
		return &out
	case *Stream:
		if v == nil {
			return NoContent()
		}
		return streamResponse(v, http.StatusOK, nil)
	default:
		return errorResponse(fmt.Errorf("unsupported reply %T", reply))
	}
}
