package inproc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/inproc"
)

func TestETag(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	r.Use(inproc.ETag())
	inproc.Get(r, "/doc", func(context.Context, *inproc.Request) (inproc.Reply, error) {
		return inproc.Text(200, "hello"), nil
	})
	inproc.Post(r, "/doc", func(context.Context, *inproc.Request) (inproc.Reply, error) {
		return inproc.Text(200, "hello"), nil
	})
	inproc.Get(r, "/missing", func(context.Context, *inproc.Request) (inproc.Reply, error) {
		return inproc.Text(404, "nope"), nil
	})

	first := dispatch(t, r, "GET", "/doc")
	require.Equal(t, 200, first.Status)
	etag := first.Header.Get("ETag")
	require.NotEmpty(t, etag)

	tests := map[string]struct {
		method      string
		path        string
		ifNoneMatch string
		wantStatus  int
		wantETag    bool
	}{
		"matching tag": {
			method: "GET", path: "/doc", ifNoneMatch: etag,
			wantStatus: 304, wantETag: true,
		},
		"weak form matches": {
			method: "GET", path: "/doc", ifNoneMatch: `"other", W/` + etag,
			wantStatus: 304, wantETag: true,
		},
		"wildcard": {
			method: "GET", path: "/doc", ifNoneMatch: "*",
			wantStatus: 304, wantETag: true,
		},
		"stale tag": {
			method: "GET", path: "/doc", ifNoneMatch: `"stale"`,
			wantStatus: 200, wantETag: true,
		},
		"post is not tagged": {
			method: "POST", path: "/doc", ifNoneMatch: etag,
			wantStatus: 200,
		},
		"error status is not tagged": {
			method: "GET", path: "/missing",
			wantStatus: 404,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var header []string
			if tc.ifNoneMatch != "" {
				header = []string{"If-None-Match", tc.ifNoneMatch}
			}
			resp := r.Dispatch(newRequest(t, tc.method, tc.path, nil, header...))
			assert.Equal(t, tc.wantStatus, resp.Status)
			assert.Equal(t, tc.wantETag, resp.Header.Get("ETag") != "")
			if resp.Status == 304 {
				assert.Empty(t, resp.Body)
			}
		})
	}
}

func TestETag_weak(t *testing.T) {
	t.Parallel()

	r := newRouter(t)
	r.Use(inproc.ETag(inproc.ETagConfig{Weak: true}))
	inproc.Get(r, "/doc", func(context.Context, *inproc.Request) (inproc.Reply, error) {
		return inproc.Text(200, "hello"), nil
	})

	assert.Regexp(t, `^W/"[0-9a-f]{16}"$`, dispatch(t, r, "GET", "/doc").Header.Get("ETag"))
}
