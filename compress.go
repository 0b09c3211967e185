package inproc

import (
	"fmt"
	"net/http"

	"github.com/CAFxX/httpcompression"
)

// CompressConfig configures CompressHTTP.
type CompressConfig struct {
	MinSize int // minimum body size to compress (default: 1024)
}

// CompressHTTP wraps h, typically the Router's ServeHTTP bridge, with
// content-encoding negotiation (gzip, brotli, zstd as the client accepts).
// Event streams are never compressed so frames keep flushing one by one.
func CompressHTTP(h http.Handler, cfg ...CompressConfig) (http.Handler, error) {
	c := CompressConfig{MinSize: 1024}
	if len(cfg) > 0 && cfg[0].MinSize > 0 {
		c.MinSize = cfg[0].MinSize
	}

	adapter, err := httpcompression.DefaultAdapter(
		httpcompression.MinSize(c.MinSize),
		httpcompression.ContentTypes([]string{"text/event-stream"}, true),
	)
	if err != nil {
		return nil, fmt.Errorf("compression adapter: %w", err)
	}
	return adapter(h), nil
}
