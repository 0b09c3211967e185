package inproc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/inproc"
)

// logBuffer is a goroutine-safe sink for a JSON slog handler.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// records returns every record whose msg equals msg.
func (b *logBuffer) records(t *testing.T, msg string) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] == msg {
			out = append(out, rec)
		}
	}
	return out
}

func TestDispatchLogging(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		handler    inproc.Handler
		path       string
		wantStatus float64
		wantLevel  string
		wantError  string
	}{
		"success is info": {
			handler: func(context.Context, *inproc.Request) (inproc.Reply, error) {
				return inproc.Text(http.StatusCreated, "made"), nil
			},
			path:       "/x",
			wantStatus: http.StatusCreated,
			wantLevel:  "INFO",
		},
		"handler error is error": {
			handler: func(context.Context, *inproc.Request) (inproc.Reply, error) {
				return nil, errors.New("boom")
			},
			path:       "/x",
			wantStatus: http.StatusInternalServerError,
			wantLevel:  "ERROR",
			wantError:  "boom",
		},
		"parse error is warn": {
			handler: func(_ context.Context, req *inproc.Request) (inproc.Reply, error) {
				_, err := req.Form()
				return nil, err
			},
			path:       "/x",
			wantStatus: http.StatusBadRequest,
			wantLevel:  "WARN",
		},
		"miss is logged": {
			handler:    noopHandler,
			path:       "/missing",
			wantStatus: http.StatusNotFound,
			wantLevel:  "INFO",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf logBuffer
			r := inproc.New(inproc.WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
			t.Cleanup(func() {
				//nolint:errcheck // first Close never fails
				r.Close()
			})
			inproc.Get(r, "/x", tc.handler)

			req := newRequest(t, http.MethodGet, tc.path, nil, inproc.RequestIDHeader, "rid-1")
			r.Dispatch(req)

			recs := buf.records(t, "dispatch")
			require.Len(t, recs, 1, "one record per dispatch")
			rec := recs[0]
			assert.Equal(t, tc.wantLevel, rec["level"])
			assert.Equal(t, http.MethodGet, rec["method"])
			assert.Equal(t, tc.path, rec["path"])
			assert.Equal(t, tc.wantStatus, rec["status"])
			assert.Equal(t, "rid-1", rec["request_id"])
			assert.Contains(t, rec, "latency")
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, rec["error"])
			}
		})
	}
}
