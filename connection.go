package inproc

import (
	"maps"
	"sync/atomic"
	"time"
)

// ConnID identifies a streaming connection for its lifetime.
type ConnID string

// Connection is one open push channel tracked by a Hub. Only the Hub adds or
// removes connections; callers get read-only views.
type Connection struct {
	id        ConnID
	stream    *Stream
	createdAt time.Time
	requestID string
	owner     *Request
	tags      map[string]string

	closed atomic.Bool
	gone   chan struct{}
	stop   func() bool
}

// ID returns the connection id.
func (c *Connection) ID() ConnID { return c.id }

// CreatedAt returns when the connection was opened.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// RequestID returns the id of the request that opened the connection, if the
// connection was bound to one.
func (c *Connection) RequestID() string { return c.requestID }

// Tag returns the value of a tag set with WithTags.
func (c *Connection) Tag(key string) string { return c.tags[key] }

// Tags returns a copy of the connection's tags.
func (c *Connection) Tags() map[string]string { return maps.Clone(c.tags) }

// Closed reports whether the connection has been closed or its stream destroyed.
func (c *Connection) Closed() bool {
	return c.closed.Load() || c.stream.Closed()
}

// Filter selects the connections a broadcast is written to. Filters run
// outside the hub lock, so they may call Hub methods.
type Filter func(*Connection) bool

// TagEquals matches connections whose tag key equals value.
func TagEquals(key, value string) Filter {
	return func(c *Connection) bool {
		v, ok := c.tags[key]
		return ok && v == value
	}
}

// Except matches every connection but id.
func Except(id ConnID) Filter {
	return func(c *Connection) bool {
		return c.id != id
	}
}

func matchAll(c *Connection, filters []Filter) bool {
	for _, f := range filters {
		if f != nil && !f(c) {
			return false
		}
	}
	return true
}
