package inproc

import (
	"context"
	"net/http"
)

// Reply is what a handler produces on success: a *Response (a finite body)
// or a *Stream (an open byte stream the handler keeps writing to). The set is
// closed; no other type implements Reply.
type Reply interface {
	reply()
}

// Handler serves one request. Returning a non-nil error is the failure arm:
// the dispatcher turns it into an error Response. A handler may block; other
// dispatches are unaffected.
type Handler func(ctx context.Context, req *Request) (Reply, error)

// Void is used as a type parameter when a request has no body or a response
// has no body (results in 204 No Content).
type Void struct{}

// Typed adapts a JSON-in, JSON-out function to a Handler. The body is decoded
// into Req (skipped for Void) and a non-nil *Resp is encoded with status 200;
// a nil *Resp or a Void response yields 204.
func Typed[Req, Resp any](h func(ctx context.Context, req *Req) (*Resp, error)) Handler {
	return func(ctx context.Context, r *Request) (Reply, error) {
		in := new(Req)
		if _, void := any(in).(*Void); !void {
			if err := r.DecodeJSON(in); err != nil {
				return nil, err
			}
		}

		out, err := h(ctx, in)
		if err != nil {
			return nil, err
		}
		if _, void := any(out).(*Void); void || out == nil {
			return NoContent(), nil
		}
		return JSON(http.StatusOK, out)
	}
}
