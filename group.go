package inproc

// Group registers routes under a shared path prefix with shared middleware.
// Group middleware runs inside the router-wide middleware added with Use.
type Group struct {
	reg        Registrar
	prefix     string
	middleware []Middleware
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupMiddleware adds middleware to every route registered on the group.
func WithGroupMiddleware(mw ...Middleware) GroupOption {
	return func(g *Group) {
		g.middleware = append(g.middleware, mw...)
	}
}

// Group returns a Group whose routes are registered on r under prefix.
func (r *Router) Group(prefix string, opts ...GroupOption) *Group {
	return newGroup(r, prefix, opts)
}

// Group returns a nested group. The prefix and middleware of g apply first.
func (g *Group) Group(prefix string, opts ...GroupOption) *Group {
	return newGroup(g, prefix, opts)
}

func newGroup(reg Registrar, prefix string, opts []GroupOption) *Group {
	g := &Group{reg: reg, prefix: prefix}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handle implements Registrar.
func (g *Group) Handle(method, path string, h Handler, opts ...RouteOption) {
	if h != nil {
		for i := len(g.middleware) - 1; i >= 0; i-- {
			h = g.middleware[i](h)
		}
	}
	g.reg.Handle(method, g.prefix+path, h, opts...)
}
