package inproc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/inproc"
)

func TestSecure(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	r.Use(inproc.Secure())
	inproc.Get(r, "/page", func(context.Context, *inproc.Request) (inproc.Reply, error) {
		return inproc.HTML(200, "<p>hi</p>").WithHeader("X-Frame-Options", "SAMEORIGIN"), nil
	})
	inproc.Get(r, "/empty", noopHandler)
	inproc.Get(r, "/stream", func(context.Context, *inproc.Request) (inproc.Reply, error) {
		s := inproc.NewStream(1)
		//nolint:errcheck // closed below
		s.Close()
		return s, nil
	})

	page := dispatch(t, r, "GET", "/page")
	assert.Equal(t, "nosniff", page.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", page.Header.Get("X-Frame-Options"), "handler header wins")
	assert.Equal(t, "same-origin", page.Header.Get("Referrer-Policy"))
	assert.Empty(t, page.Header.Get("Content-Security-Policy"))

	empty := dispatch(t, r, "GET", "/empty")
	assert.Equal(t, 204, empty.Status)
	assert.Equal(t, "DENY", empty.Header.Get("X-Frame-Options"))

	stream := dispatch(t, r, "GET", "/stream")
	require.True(t, stream.IsStream())
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", stream.Header.Get("X-Content-Type-Options"))
}

func TestSecure_custom(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	r.Use(inproc.Secure(inproc.SecureConfig{ContentSecurityPolicy: "default-src 'self'"}))
	inproc.Get(r, "/", noopHandler)

	resp := dispatch(t, r, "GET", "/")
	assert.Equal(t, "default-src 'self'", resp.Header.Get("Content-Security-Policy"))
	assert.Empty(t, resp.Header.Get("X-Frame-Options"))
}
