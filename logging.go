package inproc

import (
	"context"
	"log/slog"
	"time"
)

// logDispatch writes the one record every dispatch produces and updates the
// dispatch metrics.
func (r *Router) logDispatch(ctx context.Context, req *Request, resp *Response, took time.Duration, err error) {
	attrs := []slog.Attr{
		slog.String("method", req.Method()),
		slog.String("path", req.Path()),
		slog.Int("status", resp.Status),
		slog.Duration("latency", took),
		slog.Int("size", len(resp.Body)),
		slog.String("request_id", req.ID()),
	}
	if resp.Stream != nil {
		attrs = append(attrs, slog.Bool("stream", true))
	}

	level := slog.LevelInfo
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
		if isParseError(err) {
			level = slog.LevelWarn
		}
	}

	r.logger.LogAttrs(ctx, level, "dispatch", attrs...)
	r.metrics.dispatched(req.Method(), resp.Status, took)
}
