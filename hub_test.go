package inproc_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/inproc"
	"github.com/bjaus/inproc/inproctest"
)

// drain closes s and returns every record it still holds.
func drain(t *testing.T, s *inproc.Stream) []inproctest.Frame {
	t.Helper()
	require.NoError(t, s.Close())
	raw, err := io.ReadAll(s)
	require.NoError(t, err)
	frames, err := inproctest.ParseFrames(string(raw))
	require.NoError(t, err)
	return frames
}

func TestHub_Open(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	s := r.NewStream()

	id := r.Hub().Open(s, inproc.WithTags(map[string]string{"user": "u1"}))

	require.NotEmpty(t, id)
	c, ok := r.Hub().Get(id)
	require.True(t, ok)
	assert.Equal(t, id, c.ID())
	assert.Equal(t, "u1", c.Tag("user"))
	assert.False(t, c.CreatedAt().IsZero())
	assert.False(t, c.Closed())

	frames := drain(t, s)
	require.Len(t, frames, 1)
	assert.Equal(t, inproc.ConnectedEvent, frames[0].Event)
	assert.Contains(t, frames[0].Data, `"connectionId":"`+string(id)+`"`)
}

func TestHub_Open_rejected(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		stream func(*inproc.Router) *inproc.Stream
	}{
		"nil stream": {
			stream: func(*inproc.Router) *inproc.Stream { return nil },
		},
		"destroyed stream": {
			stream: func(r *inproc.Router) *inproc.Stream {
				s := r.NewStream()
				//nolint:errcheck // Stream.Close never fails
				s.Close()
				return s
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := newRouter(t)
			assert.Empty(t, r.Hub().Open(tc.stream(r)))
			assert.Zero(t, r.Hub().Len())
		})
	}
}

func TestHub_Broadcast(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	a, b := r.NewStream(), r.NewStream()
	r.Hub().Open(a)
	r.Hub().Open(b)

	n := r.Hub().Broadcast("update", `{"x":1}`)

	assert.Equal(t, 2, n)
	for _, s := range []*inproc.Stream{a, b} {
		frames := drain(t, s)
		require.Len(t, frames, 2)
		assert.Equal(t, "update", frames[1].Event)
		assert.Equal(t, `{"x":1}`, frames[1].Data)
	}
}

func TestHub_Broadcast_filters(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	a := r.Hub().Open(r.NewStream(), inproc.WithTags(map[string]string{"room": "1"}))
	r.Hub().Open(r.NewStream(), inproc.WithTags(map[string]string{"room": "1"}))
	r.Hub().Open(r.NewStream(), inproc.WithTags(map[string]string{"room": "2"}))

	tests := map[string]struct {
		filters []inproc.Filter
		want    int
	}{
		"no filter":        {want: 3},
		"tag":              {filters: []inproc.Filter{inproc.TagEquals("room", "1")}, want: 2},
		"tag and except":   {filters: []inproc.Filter{inproc.TagEquals("room", "1"), inproc.Except(a)}, want: 1},
		"unmatched tag":    {filters: []inproc.Filter{inproc.TagEquals("room", "9")}, want: 0},
		"custom predicate": {filters: []inproc.Filter{func(c *inproc.Connection) bool { return c.ID() == a }}, want: 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Hub().Broadcast("e", "p", tc.filters...))
		})
	}
}

func TestHub_Broadcast_filterCallsHub(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	hub := r.Hub()
	a := hub.Open(r.NewStream())
	hub.Open(r.NewStream())

	done := make(chan int, 1)
	go func() {
		done <- hub.Broadcast("e", "p", func(c *inproc.Connection) bool {
			_, ok := hub.Get(c.ID())
			return ok && hub.Len() == 2 && c.ID() == a
		})
	}()

	select {
	case n := <-done:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("broadcast with a hub-reading filter did not return")
	}
}

func TestHub_closeThenBroadcast(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	s := r.NewStream()
	id := r.Hub().Open(s)

	assert.True(t, r.Hub().Close(id))
	assert.False(t, r.Hub().Close(id), "close is idempotent")

	assert.Zero(t, r.Hub().Broadcast("e", "x"))
	assert.True(t, s.Closed())
	_, ok := r.Hub().Get(id)
	assert.False(t, ok)
}

func TestHub_prunesDestroyedStreams(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	live, dead := r.NewStream(), r.NewStream()
	r.Hub().Open(live)
	deadID := r.Hub().Open(dead)

	// Destroyed by the host: the hub finds out on the next write or via
	// its watcher, whichever comes first.
	require.NoError(t, dead.Close())

	assert.Equal(t, 1, r.Hub().Broadcast("e", "x"))
	_, ok := r.Hub().Get(deadID)
	assert.False(t, ok, "no stale connection survives a broadcast")
	assert.Equal(t, 1, r.Hub().Len())
}

func TestHub_slowConsumer(t *testing.T) {
	t.Parallel()

	r := newRouter(t, inproc.WithStreamWindow(2))
	slow, fast := r.NewStream(), r.NewStream()
	slowID := r.Hub().Open(slow)
	r.Hub().Open(fast)
	// Keep the fast reader drained.
	go func() {
		//nolint:errcheck // reads until the router closes the stream
		io.Copy(io.Discard, fast)
	}()

	assert.Eventually(t, func() bool { return fast.Buffered() == 0 }, time.Second, time.Millisecond)
	r.Hub().Broadcast("e", "1") // fills slow's window
	assert.Eventually(t, func() bool { return fast.Buffered() == 0 }, time.Second, time.Millisecond)

	n := r.Hub().Broadcast("e", "2")

	assert.Equal(t, 1, n, "dropped frame is not counted as delivered")
	_, ok := r.Hub().Get(slowID)
	assert.True(t, ok, "a slow connection is kept")
	assert.Equal(t, int64(1), slow.Dropped())
}

func TestHub_Send(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	s := r.NewStream()
	id := r.Hub().Open(s)

	require.NoError(t, r.Hub().Send(id, inproc.FormatEvent("only", "you")))
	assert.ErrorIs(t, r.Hub().Send("nope", []byte("x")), inproc.ErrUnknownConnection)

	frames := drain(t, s)
	require.Len(t, frames, 2)
	assert.Equal(t, "only", frames[1].Event)

	// The watcher may have pruned the destroyed stream already.
	err := r.Hub().Send(id, []byte("x"))
	assert.True(t, errors.Is(err, inproc.ErrStreamClosed) || errors.Is(err, inproc.ErrUnknownConnection), err)
	assert.Eventually(t, func() bool { return r.Hub().Len() == 0 }, time.Second, time.Millisecond)
}

func TestHub_CloseAll(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	streams := []*inproc.Stream{r.NewStream(), r.NewStream(), r.NewStream()}
	for _, s := range streams {
		r.Hub().Open(s)
	}

	assert.Equal(t, 3, r.Hub().CloseAll())
	assert.Zero(t, r.Hub().Len())
	for _, s := range streams {
		assert.True(t, s.Closed())
	}
}

func TestHub_IDs(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	for range 3 {
		r.Hub().Open(r.NewStream())
	}

	ids := r.Hub().IDs()
	require.Len(t, ids, 3)
	assert.True(t, slices.IsSorted(ids))
}

func TestHub_BindRequest(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	req, err := inproc.NewRequest(ctx, http.MethodGet, "/events", nil, nil)
	require.NoError(t, err)

	s := r.NewStream()
	id := r.Hub().Open(s, inproc.BindRequest(req))
	require.NotEmpty(t, id)
	c, _ := r.Hub().Get(id)
	assert.Equal(t, req.ID(), c.RequestID())

	cancel()

	assert.Eventually(t, s.Closed, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return r.Hub().Len() == 0 }, time.Second, time.Millisecond)
	assert.True(t, c.Closed())
	assert.False(t, r.Hub().Close(id), "abort closed it exactly once")
}

func TestHub_BindRequest_alreadyAborted(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := inproc.NewRequest(ctx, http.MethodGet, "/events", nil, nil)
	require.NoError(t, err)

	s := r.NewStream()
	r.Hub().Open(s, inproc.BindRequest(req))

	assert.Eventually(t, func() bool { return r.Hub().Len() == 0 && s.Closed() }, time.Second, time.Millisecond)
}

func TestHub_concurrentBroadcasts(t *testing.T) {
	t.Parallel()

	const (
		writers = 8
		each    = 50
	)

	r := newRouter(t, inproc.WithStreamWindow(writers*each+1))
	s := r.NewStream()
	r.Hub().Open(s)

	payload := func(w, i int) string {
		return fmt.Sprintf("w%d-%d\nsecond line of w%d-%d", w, i, w, i)
	}

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				r.Hub().Broadcast("w"+strconv.Itoa(w), payload(w, i))
			}
		}()
	}
	wg.Wait()

	frames := drain(t, s)
	require.Len(t, frames, writers*each+1)

	next := make(map[string]int, writers)
	for _, f := range frames[1:] {
		w, err := strconv.Atoi(f.Event[1:])
		require.NoError(t, err)
		i := next[f.Event]
		assert.Equal(t, payload(w, i), f.Data, "frames are whole and in per-writer order")
		next[f.Event] = i + 1
	}
}

func TestHub_patches(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	s := r.NewStream()
	r.Hub().Open(s)

	n, err := r.Hub().PatchSignals(map[string]int{"count": 2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.Hub().PatchElements(`<li id="a">a</li>`, inproc.WithSelector("#list"), inproc.WithMode(inproc.ModeAppend))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.Hub().ExecuteScript("console.log(1)")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = r.Hub().PatchSignals([]byte("{broken"))
	assert.Error(t, err)

	br := bufio.NewReader(s)
	assert.Equal(t, inproc.ConnectedEvent, nextFrame(t, br).Event)
	assert.Equal(t, "datastar-patch-signals", nextFrame(t, br).Event)
	assert.Equal(t, "datastar-patch-elements", nextFrame(t, br).Event)
	script := nextFrame(t, br)
	assert.True(t, strings.HasPrefix(script.Event, "datastar-"), script.Event)
	assert.Contains(t, script.Data, "console.log(1)")
}
