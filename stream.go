package inproc

import (
	"io"
	"sync"
	"sync/atomic"
)

// DefaultStreamWindow is the number of frames a Stream queues before it
// starts dropping writes.
const DefaultStreamWindow = 64

// Stream is an open, long-lived byte stream returned to the host as a
// response body. The core writes whole frames; the host reads bytes.
//
// Each Write is queued as one frame, so concurrent writers never interleave
// partial frames. The queue is bounded: when the host falls behind, further
// writes are dropped for this stream only and report ErrStreamFull.
type Stream struct {
	mu     sync.Mutex
	frames [][]byte
	cur    []byte
	window int
	closed bool

	notify  chan struct{}
	done    chan struct{}
	dropped atomic.Int64
}

// NewStream returns an open stream that queues up to window frames. A window
// below 1 uses DefaultStreamWindow.
func NewStream(window int) *Stream {
	if window < 1 {
		window = DefaultStreamWindow
	}
	return &Stream{
		window: window,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (*Stream) reply() {}

// Write queues p as a single frame.
func (s *Stream) Write(p []byte) (int, error) {
	frame := make([]byte, len(p))
	copy(frame, p)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrStreamClosed
	}
	if len(s.frames) >= s.window {
		s.mu.Unlock()
		s.dropped.Add(1)
		return 0, ErrStreamFull
	}
	s.frames = append(s.frames, frame)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return len(p), nil
}

// WriteString queues s as a single frame.
func (s *Stream) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// Read implements io.Reader for the host side. It blocks until a frame is
// queued or the stream is closed, and returns io.EOF once a closed stream has
// been drained.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		s.mu.Lock()
		if len(s.cur) == 0 && len(s.frames) > 0 {
			s.cur = s.frames[0]
			s.frames[0] = nil
			s.frames = s.frames[1:]
		}
		if len(s.cur) > 0 {
			n := copy(p, s.cur)
			s.cur = s.cur[n:]
			s.mu.Unlock()
			return n, nil
		}
		if s.closed {
			s.mu.Unlock()
			return 0, io.EOF
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
		}
	}
}

// Close marks the stream destroyed. Frames already queued stay readable.
// Close is idempotent and is used by both the core and the host.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// Closed reports whether the stream has been destroyed.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Done is closed when the stream is destroyed.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Buffered returns the number of frames waiting for the host.
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Dropped returns how many writes were rejected because the window was full.
func (s *Stream) Dropped() int64 { return s.dropped.Load() }

var _ io.ReadWriteCloser = (*Stream)(nil)
