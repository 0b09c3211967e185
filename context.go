package inproc

import "context"

type contextKey[T any] struct{}

// SetValue stores a typed value in ctx. Keys are the value's type, so two
// distinct types never collide.
func SetValue[T any](ctx context.Context, val T) context.Context {
	return context.WithValue(ctx, contextKey[T]{}, val)
}

// GetValue retrieves a typed value stored with SetValue.
func GetValue[T any](ctx context.Context) (T, bool) {
	val, ok := ctx.Value(contextKey[T]{}).(T)
	return val, ok
}

// MatchedRoute returns the route the dispatcher resolved for the current
// handler invocation.
func MatchedRoute(ctx context.Context) (RouteInfo, bool) {
	return GetValue[RouteInfo](ctx)
}
