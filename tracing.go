package inproc

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SpanStarter is a tracing hook interface for creating spans per dispatch.
// OTelTracer adapts an OpenTelemetry tracer; any other backend can implement
// it directly.
type SpanStarter interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func())
}

// WithTracer sets a tracing hook for the router.
func WithTracer(s SpanStarter) RouterOption {
	return func(r *Router) {
		r.tracer = s
	}
}

type otelTracer struct {
	tracer trace.Tracer
}

// OTelTracer returns a SpanStarter backed by an OpenTelemetry tracer. A nil
// tracer uses the global provider's "inproc" tracer.
func OTelTracer(tracer trace.Tracer) SpanStarter {
	if tracer == nil {
		tracer = otel.Tracer("inproc")
	}
	return otelTracer{tracer: tracer}
}

func (t otelTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func()) {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attribute.String(k, v))
	}
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(kvs...),
	)
	return ctx, func() { span.End() }
}
