package inproc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// Registrar is the interface accepted by the registration functions.
type Registrar interface {
	Handle(method, path string, h Handler, opts ...RouteOption)
}

// Handle registers h for (method, path). A later registration of the same
// pair replaces the earlier handler. Matching is exact on both.
//
// Handle panics with a *ConfigError when the route is malformed, h is nil,
// the router is closed, or the router has already started dispatching.
func (r *Router) Handle(method, path string, h Handler, opts ...RouteOption) {
	e := &routeEntry{
		info:    RouteInfo{Method: strings.ToUpper(method), Path: path},
		handler: h,
	}
	for _, opt := range opts {
		opt(e)
	}

	if msg, ok := validRoute(e.info); !ok {
		panic(&ConfigError{Op: "handle", Detail: msg})
	}
	if h == nil {
		panic(&ConfigError{Op: "handle", Detail: "nil handler for " + e.info.String()})
	}
	if r.closed.Load() {
		panic(&ConfigError{Op: "handle", Detail: "router closed: " + e.info.String()})
	}
	if r.sealed.Load() {
		panic(&ConfigError{Op: "handle", Detail: "interception already active: " + e.info.String()})
	}

	rl := e.rateLimit
	if rl == nil {
		rl = r.rateLimit
	}
	if rl != nil && rl.Rate > 0 {
		e.limiter = newLimiterSet(*rl)
	}

	if r.routes.put(e) {
		r.logger.LogAttrs(context.Background(), slog.LevelDebug, "route replaced",
			slog.String("route", e.info.String()),
		)
	}
}

// Route registers h under GET unless WithMethod says otherwise.
func (r *Router) Route(path string, h Handler, opts ...RouteOption) {
	r.Handle(http.MethodGet, path, h, opts...)
}

// Get registers a GET handler.
func Get(reg Registrar, path string, h Handler, opts ...RouteOption) {
	reg.Handle(http.MethodGet, path, h, opts...)
}

// Post registers a POST handler.
func Post(reg Registrar, path string, h Handler, opts ...RouteOption) {
	reg.Handle(http.MethodPost, path, h, opts...)
}

// Put registers a PUT handler.
func Put(reg Registrar, path string, h Handler, opts ...RouteOption) {
	reg.Handle(http.MethodPut, path, h, opts...)
}

// Patch registers a PATCH handler.
func Patch(reg Registrar, path string, h Handler, opts ...RouteOption) {
	reg.Handle(http.MethodPatch, path, h, opts...)
}

// Delete registers a DELETE handler.
func Delete(reg Registrar, path string, h Handler, opts ...RouteOption) {
	reg.Handle(http.MethodDelete, path, h, opts...)
}

// Match returns the route registered for (method, path), or ErrRouteNotFound.
func (r *Router) Match(method, path string) (RouteInfo, error) {
	e, ok := r.routes.resolve(strings.ToUpper(method), path)
	if !ok {
		return RouteInfo{}, fmt.Errorf("%w: %s %s", ErrRouteNotFound, strings.ToUpper(method), path)
	}
	return e.info, nil
}
