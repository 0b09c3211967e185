package inproc

// WithBodyLimit caps the request body at maxBytes. Reading a larger body
// through any Request accessor fails with a ParseError.
func WithBodyLimit(maxBytes int64) RouteOption {
	return func(e *routeEntry) {
		e.bodyLimit = maxBytes
	}
}
