package inproc_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/inproc"
)

func TestGroup_prefix(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	v1 := r.Group("/v1")
	inproc.Get(v1, "/health", func(context.Context, *inproc.Request) (inproc.Reply, error) {
		return inproc.Text(200, "ok"), nil
	})
	inproc.Get(v1.Group("/admin"), "/stats", noopHandler)

	assert.Equal(t, 200, dispatch(t, r, "GET", "/v1/health").Status)
	assert.Equal(t, 404, dispatch(t, r, "GET", "/health").Status)
	assert.Equal(t, 204, dispatch(t, r, "GET", "/v1/admin/stats").Status)
}

func TestGroup_middlewareOrder(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		order []string
	)
	trace := func(name string) inproc.Middleware {
		return func(next inproc.Handler) inproc.Handler {
			return func(ctx context.Context, req *inproc.Request) (inproc.Reply, error) {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return next(ctx, req)
			}
		}
	}

	r := newRouter(t)
	r.Use(trace("router"))
	outer := r.Group("/api", inproc.WithGroupMiddleware(trace("outer")))
	inner := outer.Group("/v2", inproc.WithGroupMiddleware(trace("inner")))
	inproc.Get(inner, "/x", noopHandler)
	inproc.Get(r, "/plain", noopHandler)

	dispatch(t, r, "GET", "/api/v2/x")
	assert.Equal(t, []string{"router", "outer", "inner"}, order)

	order = nil
	dispatch(t, r, "GET", "/plain")
	assert.Equal(t, []string{"router"}, order, "group middleware stays on group routes")
}

func TestGroup_nilHandler(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	g := r.Group("/g", inproc.WithGroupMiddleware(func(next inproc.Handler) inproc.Handler { return next }))

	defer func() {
		ce, ok := recover().(*inproc.ConfigError)
		require.True(t, ok)
		assert.True(t, strings.Contains(ce.Detail, "nil handler"))
	}()
	inproc.Get(g, "/x", nil)
}
