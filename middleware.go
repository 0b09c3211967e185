package inproc

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Middleware wraps a Handler. Middleware added with Use runs for every
// route, outermost first.
type Middleware func(next Handler) Handler

// Use adds middleware to the router. Middleware is applied in the order added
// and must be added before the first dispatch.
func (r *Router) Use(mw ...Middleware) {
	if r.sealed.Load() {
		panic(&ConfigError{Op: "use", Detail: "interception already active"})
	}
	r.middleware = append(r.middleware, mw...)
}

func (r *Router) wrap(h Handler) Handler {
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}
	return h
}

// PanicError is the failure a recovered handler panic turns into.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("handler panic: %v", e.Value) }

// invoke runs h and converts a panic into a *PanicError.
func (r *Router) invoke(ctx context.Context, h Handler, req *Request) (reply Reply, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pe := &PanicError{Value: rec, Stack: debug.Stack()}
			r.logger.LogAttrs(ctx, slog.LevelError, "panic recovered",
				slog.Any("panic", rec),
				slog.String("stack", string(pe.Stack)),
				slog.String("method", req.Method()),
				slog.String("path", req.Path()),
				slog.String("request_id", req.ID()),
			)
			reply, err = nil, pe
		}
	}()
	return h(ctx, req)
}
