package inproc

import "time"

// WithTimeout bounds the handler's context with a deadline. The context is
// cancelled when the handler returns, so streaming handlers must not tie
// their background writers to it; use the Request's Done instead.
func WithTimeout(d time.Duration) RouteOption {
	return func(e *routeEntry) {
		e.timeout = d
	}
}
