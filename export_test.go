package inproc

// Test-only exports for internal functions.
var (
	ValidScheme = validScheme
	ToResponse  = toResponse
)

// ValidRoute reports whether (method, path) would be accepted by Handle.
func ValidRoute(method, path string) bool {
	_, ok := validRoute(RouteInfo{Method: method, Path: path})
	return ok
}
