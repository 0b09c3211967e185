package inproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// ETagConfig configures the ETag middleware.
type ETagConfig struct {
	Weak bool // use weak ETags
}

// ETag returns middleware that tags buffered 2xx GET and HEAD replies with a
// content hash and answers a matching If-None-Match with 304 Not Modified.
// Streams and failures pass through untouched.
func ETag(cfg ...ETagConfig) Middleware {
	var c ETagConfig
	if len(cfg) > 0 {
		c = cfg[0]
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (Reply, error) {
			reply, err := next(ctx, req)
			if err != nil || (req.Method() != http.MethodGet && req.Method() != http.MethodHead) {
				return reply, err
			}
			resp, ok := reply.(*Response)
			if !ok || resp == nil || resp.Stream != nil {
				return reply, nil
			}
			if resp.Status != 0 && (resp.Status < 200 || resp.Status >= 300) {
				return reply, nil
			}

			hash := sha256.Sum256(resp.Body)
			etag := `"` + hex.EncodeToString(hash[:8]) + `"`
			if c.Weak {
				etag = "W/" + etag
			}
			resp.WithHeader("ETag", etag)

			if match := req.Header("If-None-Match"); match != "" && etagMatches(match, etag) {
				return (&Response{Status: http.StatusNotModified}).WithHeader("ETag", etag), nil
			}
			return resp, nil
		}
	}
}

// etagMatches compares with the weak comparison RFC 9110 uses for
// If-None-Match.
func etagMatches(header, etag string) bool {
	if strings.TrimSpace(header) == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for tag := range strings.SplitSeq(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(tag), "W/") == want {
			return true
		}
	}
	return false
}
