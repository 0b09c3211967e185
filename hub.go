package inproc

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"
)

// Hub owns the set of open streaming connections. It is the only place
// connections are added or removed, and the only way to write to all of them.
//
// All methods are safe for concurrent use. Writes happen under the hub lock
// and never block (a full stream window drops the frame), so frames from
// concurrent broadcasts reach each connection whole and in a single order.
type Hub struct {
	mu     sync.Mutex
	conns  map[ConnID]*Connection
	closed bool

	logger  *slog.Logger
	metrics *metrics
	now     func() time.Time
}

func newHub(logger *slog.Logger, m *metrics) *Hub {
	return &Hub{
		conns:   make(map[ConnID]*Connection),
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// OpenOption configures a connection at Open.
type OpenOption func(*openConfig)

type openConfig struct {
	req  *Request
	tags map[string]string
}

// BindRequest closes the connection, exactly once, when req is aborted by
// the host.
func BindRequest(req *Request) OpenOption {
	return func(c *openConfig) {
		c.req = req
	}
}

// WithTags labels the connection for broadcast filters.
func WithTags(tags map[string]string) OpenOption {
	return func(c *openConfig) {
		if c.tags == nil {
			c.tags = make(map[string]string, len(tags))
		}
		maps.Copy(c.tags, tags)
	}
}

// Open starts tracking stream and writes the connection-established frame to
// it. It returns "" without tracking anything when the stream is already
// destroyed or the hub has been closed.
func (h *Hub) Open(stream *Stream, opts ...OpenOption) ConnID {
	if stream == nil {
		return ""
	}
	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Connection{
		id:        ConnID(uuid.NewString()),
		stream:    stream,
		createdAt: h.now(),
		tags:      cfg.tags,
		gone:      make(chan struct{}),
	}
	if cfg.req != nil {
		c.requestID = cfg.req.ID()
		c.owner = cfg.req
	}

	h.mu.Lock()
	if h.closed || stream.Closed() {
		h.mu.Unlock()
		return ""
	}
	if _, err := stream.Write(ConnectedFrame(c.id, c.createdAt)); err != nil {
		h.mu.Unlock()
		return ""
	}
	h.conns[c.id] = c
	active := len(h.conns)
	h.mu.Unlock()

	// Registered after insertion: an already-aborted request fires the
	// callback right away and finds the entry to remove.
	if cfg.req != nil {
		stop := cfg.req.OnAbort(func() { h.Close(c.id) })
		h.mu.Lock()
		c.stop = stop
		h.mu.Unlock()
	}
	go h.watch(c)

	h.metrics.connectionsActive(active)
	h.logger.LogAttrs(context.Background(), slog.LevelDebug, "connection opened",
		slog.String("conn_id", string(c.id)),
		slog.String("request_id", c.requestID),
		slog.Int("active", active),
	)
	return c.id
}

// watch closes the connection as soon as the host destroys its stream.
func (h *Hub) watch(c *Connection) {
	select {
	case <-c.stream.Done():
		h.Close(c.id)
	case <-c.gone:
	}
}

// Broadcast frames payload as a plain SSE event and writes it to every open
// connection matching all filters. It returns how many writes succeeded.
// Dead connections are pruned, never reported.
func (h *Hub) Broadcast(event, payload string, filters ...Filter) int {
	return h.BroadcastFrame(FormatEvent(event, payload), filters...)
}

// BroadcastFrame writes an already framed record to every open connection
// matching all filters.
func (h *Hub) BroadcastFrame(frame []byte, filters ...Filter) int {
	h.mu.Lock()
	targets := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	if len(filters) > 0 {
		targets = slices.DeleteFunc(targets, func(c *Connection) bool {
			return !matchAll(c, filters)
		})
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var delivered, dropped int
	for _, c := range targets {
		id := c.id
		if h.conns[id] != c {
			continue
		}
		if c.stream.Closed() {
			h.removeLocked(id, c)
			continue
		}
		_, err := c.stream.Write(frame)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrStreamFull):
			dropped++
		default:
			h.removeLocked(id, c)
		}
	}

	h.metrics.broadcast(delivered, dropped)
	if dropped > 0 {
		h.logger.LogAttrs(context.Background(), slog.LevelWarn, "broadcast dropped for slow connections",
			slog.Int("dropped", dropped),
		)
	}
	return delivered
}

// Send writes a framed record to one connection.
func (h *Hub) Send(id ConnID, frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if c.stream.Closed() {
		h.removeLocked(id, c)
		return ErrStreamClosed
	}
	if _, err := c.stream.Write(frame); err != nil {
		if !errors.Is(err, ErrStreamFull) {
			h.removeLocked(id, c)
		}
		return err
	}
	return nil
}

// Heartbeat writes an SSE comment to every connection.
func (h *Hub) Heartbeat() int {
	return h.BroadcastFrame([]byte(Heartbeat))
}

// PatchSignals broadcasts a signals patch.
func (h *Hub) PatchSignals(signals any, opts ...PatchOption) (int, error) {
	frame, err := SignalsFrame(signals, opts...)
	if err != nil {
		return 0, err
	}
	return h.BroadcastFrame(frame), nil
}

// PatchElements broadcasts an element patch.
func (h *Hub) PatchElements(html string, opts ...PatchOption) (int, error) {
	frame, err := ElementsFrame(html, opts...)
	if err != nil {
		return 0, err
	}
	return h.BroadcastFrame(frame), nil
}

// RenderElements renders a templ component and broadcasts it as an element
// patch.
func (h *Hub) RenderElements(ctx context.Context, component templ.Component, opts ...PatchOption) (int, error) {
	frame, err := ComponentFrame(ctx, component, opts...)
	if err != nil {
		return 0, err
	}
	return h.BroadcastFrame(frame), nil
}

// ExecuteScript broadcasts a script for every client to run once.
func (h *Hub) ExecuteScript(script string) (int, error) {
	frame, err := ScriptFrame(script)
	if err != nil {
		return 0, err
	}
	return h.BroadcastFrame(frame), nil
}

// Close stops tracking the connection and closes its stream. Closing an
// unknown or already closed id is a no-op and reports false.
func (h *Hub) Close(id ConnID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[id]
	if !ok {
		return false
	}
	h.removeLocked(id, c)
	return true
}

// closeFor closes every connection opened with BindRequest(req) and returns
// how many there were.
func (h *Hub) closeFor(req *Request) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	var n int
	for id, c := range h.conns {
		if c.owner == req {
			h.removeLocked(id, c)
			n++
		}
	}
	return n
}

// CloseAll closes every tracked connection and returns how many there were.
func (h *Hub) CloseAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.conns)
	for id, c := range h.conns {
		h.removeLocked(id, c)
	}
	return n
}

// shutdown closes every connection and refuses new ones.
func (h *Hub) shutdown() int {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return h.CloseAll()
}

// Get returns the tracked connection with id.
func (h *Hub) Get(id ConnID) (*Connection, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[id]
	return c, ok
}

// Len returns the number of tracked connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// IDs returns the ids of all tracked connections, sorted.
func (h *Hub) IDs() []ConnID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Sorted(maps.Keys(h.conns))
}

// removeLocked must be called with h.mu held.
func (h *Hub) removeLocked(id ConnID, c *Connection) {
	delete(h.conns, id)
	if c.closed.Swap(true) {
		return
	}
	close(c.gone)
	//nolint:errcheck // Stream.Close never fails
	c.stream.Close()
	if c.stop != nil {
		c.stop()
	}

	h.metrics.connectionsActive(len(h.conns))
	h.logger.LogAttrs(context.Background(), slog.LevelDebug, "connection closed",
		slog.String("conn_id", string(id)),
		slog.Duration("age", h.now().Sub(c.createdAt)),
	)
}
