package inproc

import (
	"cmp"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// RouteInfo identifies a registered route.
type RouteInfo struct {
	Method string
	Path   string
}

func (ri RouteInfo) key() string { return ri.Method + " " + ri.Path }

// String returns "METHOD /path".
func (ri RouteInfo) String() string { return ri.key() }

// routeEntry holds a registered route and its per-route settings.
type routeEntry struct {
	info      RouteInfo
	handler   Handler
	timeout   time.Duration
	bodyLimit int64
	rateLimit *RateLimitConfig
	limiter   *limiterSet
}

// RouteOption configures a route at registration time.
type RouteOption func(*routeEntry)

// WithMethod overrides the method a route is registered under.
func WithMethod(method string) RouteOption {
	return func(e *routeEntry) {
		e.info.Method = strings.ToUpper(method)
	}
}

// registry is a flat (method, path) → handler map. Matching is exact; the
// last registration for a key wins.
type registry struct {
	mu     sync.RWMutex
	routes map[string]*routeEntry
}

func newRegistry() *registry {
	return &registry{routes: make(map[string]*routeEntry)}
}

// put stores e and reports whether it replaced an earlier handler.
func (g *registry) put(e *routeEntry) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, replaced := g.routes[e.info.key()]
	g.routes[e.info.key()] = e
	return replaced
}

func (g *registry) resolve(method, path string) (*routeEntry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.routes[method+" "+path]
	return e, ok
}

func (g *registry) list() []RouteInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]RouteInfo, 0, len(g.routes))
	for e := range maps.Values(g.routes) {
		out = append(out, e.info)
	}
	slices.SortFunc(out, func(a, b RouteInfo) int {
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.Method, b.Method))
	})
	return out
}

func (g *registry) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.routes)
}

func validRoute(ri RouteInfo) (string, bool) {
	switch {
	case ri.Method == "":
		return "empty method", false
	case ri.Path == "" || ri.Path[0] != '/':
		return "path must start with /: " + ri.Path, false
	case strings.ContainsAny(ri.Path, "?#"):
		return "path must not contain a query or fragment: " + ri.Path, false
	}
	return "", true
}
