package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-drift/rendercore/pkg/config"
)

// InstrumentationName identifies spans produced by the mount engine.
const InstrumentationName = "github.com/go-drift/rendercore"

// Tracer records nested sections as OpenTelemetry spans.
//
// Sections are strictly nested: every BeginSection must be matched by an
// EndSection on the same goroutine. A nil *Tracer is valid and records nothing.
type Tracer struct {
	tracer trace.Tracer
	stack  []sectionFrame
}

type sectionFrame struct {
	ctx  context.Context
	span trace.Span
}

// NewTracer creates a tracer from the global OpenTelemetry provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(InstrumentationName)}
}

// NewTracerWithProvider creates a tracer from an explicit provider.
func NewTracerWithProvider(provider trace.TracerProvider) *Tracer {
	return &Tracer{tracer: provider.Tracer(InstrumentationName)}
}

// BeginSection opens a span nested in the current section.
func (t *Tracer) BeginSection(name string, attrs ...attribute.KeyValue) {
	if t == nil {
		return
	}
	parent := context.Background()
	if n := len(t.stack); n > 0 {
		parent = t.stack[n-1].ctx
	}
	ctx, span := t.tracer.Start(parent, name, trace.WithAttributes(attrs...))
	t.stack = append(t.stack, sectionFrame{ctx: ctx, span: span})
}

// EndSection closes the innermost open section.
func (t *Tracer) EndSection() {
	if t == nil {
		return
	}
	n := len(t.stack)
	if n == 0 {
		return
	}
	t.stack[n-1].span.End()
	t.stack[n-1] = sectionFrame{}
	t.stack = t.stack[:n-1]
}

// Depth returns the number of open sections.
func (t *Tracer) Depth() int {
	if t == nil {
		return 0
	}
	return len(t.stack)
}

// NewTracerProvider builds an SDK provider from the tracing configuration.
// It returns nil when tracing is disabled.
func NewTracerProvider(cfg config.TracingConfig) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts := []sdktrace.TracerProviderOption{sdktrace.WithSampler(sdktrace.AlwaysSample())}
	switch cfg.Exporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithSyncer(exporter))
	case "none", "":
		// Spans are recorded but not exported.
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	return sdktrace.NewTracerProvider(opts...), nil
}
