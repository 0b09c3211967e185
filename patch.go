package inproc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"
)

// PatchMode controls how an element patch is merged into the page.
type PatchMode = datastar.ElementPatchMode

// Patch mode aliases for convenience.
const (
	ModeOuter   = datastar.ElementPatchModeOuter   // Morphs element (default)
	ModeInner   = datastar.ElementPatchModeInner   // Replace inner HTML
	ModeReplace = datastar.ElementPatchModeReplace // Replace entire element
	ModeRemove  = datastar.ElementPatchModeRemove  // Remove element
	ModeAppend  = datastar.ElementPatchModeAppend  // Append inside element
	ModePrepend = datastar.ElementPatchModePrepend // Prepend inside element
	ModeBefore  = datastar.ElementPatchModeBefore  // Insert before element
	ModeAfter   = datastar.ElementPatchModeAfter   // Insert after element
)

// PatchOption configures a patch frame.
type PatchOption func(*patchConfig)

type patchConfig struct {
	selector      string
	mode          PatchMode
	hasMode       bool
	onlyIfMissing bool
}

// WithSelector sets the CSS selector an element patch targets. Without it the
// client matches top-level elements by id.
func WithSelector(selector string) PatchOption {
	return func(c *patchConfig) {
		c.selector = selector
	}
}

// WithMode sets how an element patch is merged.
func WithMode(mode PatchMode) PatchOption {
	return func(c *patchConfig) {
		c.mode = mode
		c.hasMode = true
	}
}

// WithOnlyIfMissing makes a signals patch set only signals the client does
// not have yet.
func WithOnlyIfMissing() PatchOption {
	return func(c *patchConfig) {
		c.onlyIfMissing = true
	}
}

func newPatchConfig(opts []PatchOption) patchConfig {
	var c patchConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// SignalsFrame frames a signals patch. v is marshaled to a JSON object unless
// it already is JSON ([]byte or json.RawMessage).
func SignalsFrame(v any, opts ...PatchOption) ([]byte, error) {
	var data []byte
	switch s := v.(type) {
	case json.RawMessage:
		data = s
	case []byte:
		data = s
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("marshal signals: %w", err)
		}
	}
	if !json.Valid(data) {
		return nil, errors.New("signals are not valid JSON")
	}

	c := newPatchConfig(opts)
	var dsOpts []datastar.PatchSignalsOption
	if c.onlyIfMissing {
		dsOpts = append(dsOpts, datastar.WithOnlyIfMissing(true))
	}
	return captureFrame(func(sse *datastar.ServerSentEventGenerator) error {
		return sse.PatchSignals(data, dsOpts...)
	})
}

// ElementsFrame frames an element patch carrying html.
func ElementsFrame(html string, opts ...PatchOption) ([]byte, error) {
	c := newPatchConfig(opts)
	var dsOpts []datastar.PatchElementOption
	if c.selector != "" {
		dsOpts = append(dsOpts, datastar.WithSelector(c.selector))
	}
	if c.hasMode {
		dsOpts = append(dsOpts, datastar.WithMode(c.mode))
	}
	return captureFrame(func(sse *datastar.ServerSentEventGenerator) error {
		return sse.PatchElements(html, dsOpts...)
	})
}

// ComponentFrame renders a templ component and frames it as an element patch.
func ComponentFrame(ctx context.Context, component templ.Component, opts ...PatchOption) ([]byte, error) {
	var b strings.Builder
	if err := component.Render(ctx, &b); err != nil {
		return nil, fmt.Errorf("render component: %w", err)
	}
	return ElementsFrame(b.String(), opts...)
}

// ScriptFrame frames a script the client executes once.
func ScriptFrame(script string) ([]byte, error) {
	return captureFrame(func(sse *datastar.ServerSentEventGenerator) error {
		return sse.ExecuteScript(script)
	})
}

// RedirectFrame frames a client-side navigation to url.
func RedirectFrame(url string) ([]byte, error) {
	return captureFrame(func(sse *datastar.ServerSentEventGenerator) error {
		return sse.Redirect(url)
	})
}

// captureFrame runs a datastar generator against an in-memory writer and
// returns the bytes it produced. The generator only writes the frame body; the
// headers it sets are discarded.
func captureFrame(fn func(*datastar.ServerSentEventGenerator) error) ([]byte, error) {
	rec := &frameRecorder{header: make(http.Header)}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "/", nil)
	if err != nil {
		return nil, err
	}
	if err := fn(datastar.NewSSE(rec, req)); err != nil {
		return nil, fmt.Errorf("frame patch: %w", err)
	}
	return rec.buf.Bytes(), nil
}

// frameRecorder is the minimal http.ResponseWriter + http.Flusher datastar
// needs to produce a frame.
type frameRecorder struct {
	header http.Header
	buf    bytes.Buffer
}

func (r *frameRecorder) Header() http.Header         { return r.header }
func (r *frameRecorder) Write(p []byte) (int, error) { return r.buf.Write(p) }
func (r *frameRecorder) WriteHeader(int)             {}
func (r *frameRecorder) Flush()                      {}
