package inproc

import (
	"context"
	"net/http"
)

// SecureConfig configures the Secure headers middleware.
type SecureConfig struct {
	ContentTypeNosniff    bool   // X-Content-Type-Options: nosniff
	FrameDeny             bool   // X-Frame-Options: DENY
	ContentSecurityPolicy string // Content-Security-Policy, omitted when empty
	ReferrerPolicy        string // Referrer-Policy, omitted when empty
}

// Secure returns middleware that adds security headers to every successful
// reply, streams included. Headers the handler already set are kept. With no
// arguments nosniff, frame deny and a same-origin referrer policy are used.
func Secure(cfg ...SecureConfig) Middleware {
	c := SecureConfig{
		ContentTypeNosniff: true,
		FrameDeny:          true,
		ReferrerPolicy:     "same-origin",
	}
	if len(cfg) > 0 {
		c = cfg[0]
	}

	headers := make(http.Header)
	if c.ContentTypeNosniff {
		headers.Set("X-Content-Type-Options", "nosniff")
	}
	if c.FrameDeny {
		headers.Set("X-Frame-Options", "DENY")
	}
	if c.ContentSecurityPolicy != "" {
		headers.Set("Content-Security-Policy", c.ContentSecurityPolicy)
	}
	if c.ReferrerPolicy != "" {
		headers.Set("Referrer-Policy", c.ReferrerPolicy)
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (Reply, error) {
			reply, err := next(ctx, req)
			if err != nil {
				return reply, err
			}
			var resp *Response
			switch v := reply.(type) {
			case *Response:
				resp = v
			case *Stream:
				if v != nil {
					resp = &Response{Status: http.StatusOK, Stream: v}
				}
			}
			if resp == nil {
				resp = NoContent()
			}
			for k, vs := range headers {
				if resp.Header.Get(k) == "" {
					resp.WithHeader(k, vs[0])
				}
			}
			return resp, nil
		}
	}
}
