package inproc

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Router is the central type that holds routes, open connections, and
// configuration. One Router serves one host.
//
// Registration happens at startup: the first dispatch (or the first call to
// Transport) seals the route table and later registrations panic.
type Router struct {
	routes     *registry
	hub        *Hub
	schemes    *schemeSet
	middleware []Middleware

	logger    *slog.Logger
	metrics   *metrics
	tracer    SpanStarter
	rateLimit *RateLimitConfig
	window    int
	heartbeat time.Duration

	sealed atomic.Bool
	closed atomic.Bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the logger for dispatch and connection records. The
// default is slog.Default().
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithStreamWindow sets the frame window of streams created by NewStream and
// Events.
func WithStreamWindow(frames int) RouterOption {
	return func(r *Router) {
		r.window = frames
	}
}

// WithHeartbeat writes a comment frame to every open connection each
// interval. Zero disables it.
func WithHeartbeat(interval time.Duration) RouterOption {
	return func(r *Router) {
		r.heartbeat = interval
	}
}

// New creates a new Router with the given options.
func New(opts ...RouterOption) *Router {
	r := &Router{
		routes:  newRegistry(),
		schemes: newSchemeSet(),
		logger:  slog.Default(),
		window:  DefaultStreamWindow,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.hub = newHub(r.logger, r.metrics)

	if r.heartbeat > 0 {
		r.wg.Add(1)
		go r.heartbeatLoop(r.heartbeat)
	}
	return r
}

// Hub returns the router's connection manager.
func (r *Router) Hub() *Hub { return r.hub }

// NewStream returns a stream sized to the router's window.
func (r *Router) NewStream() *Stream { return NewStream(r.window) }

// Routes lists the registered routes sorted by path, then method.
func (r *Router) Routes() []RouteInfo { return r.routes.list() }

// Events registers a GET route that opens a push stream, tracks it in the
// hub bound to the request's abort signal, and returns it. Every query
// parameter becomes a connection tag (first value wins), so
// "/events?topic=notes" can be targeted with TagEquals("topic", "notes").
func (r *Router) Events(path string, opts ...RouteOption) {
	r.Handle(http.MethodGet, path, func(_ context.Context, req *Request) (Reply, error) {
		tags := make(map[string]string, req.Query().Len())
		for k, v := range req.Query().Pairs() {
			if _, ok := tags[k]; !ok {
				tags[k] = v
			}
		}

		s := r.NewStream()
		if r.hub.Open(s, BindRequest(req), WithTags(tags)) == "" {
			s.Close()
			return nil, Error(http.StatusServiceUnavailable, "event stream unavailable")
		}
		return s, nil
	}, opts...)
}

// Close shuts the router down: every open connection is closed, the route
// table and schemes are released and the heartbeat stops. Dispatches after
// Close answer 503. The first call returns nil; later calls return ErrClosed
// and do nothing.
func (r *Router) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(r.stop)
	r.wg.Wait()

	n := r.hub.shutdown()
	r.routes.release()
	r.schemes.release()

	r.logger.LogAttrs(context.Background(), slog.LevelInfo, "router closed",
		slog.Int("connections", n),
	)
	return nil
}

// Closed reports whether Close has been called.
func (r *Router) Closed() bool { return r.closed.Load() }

func (r *Router) seal() {
	if r.sealed.CompareAndSwap(false, true) {
		r.logger.LogAttrs(context.Background(), slog.LevelDebug, "route table sealed",
			slog.Int("routes", len(r.routes.list())),
		)
	}
}

func (r *Router) heartbeatLoop(interval time.Duration) {
	defer r.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			r.hub.Heartbeat()
		case <-r.stop:
			return
		}
	}
}
