package telemetry

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/go-drift/rendercore/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"":         zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mount.log")
	logger, closer, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug().Int64("id", 3).Msg("mounted")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"id":3`) {
		t.Errorf("log file %q missing field", data)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ItemMounted("text")
	m.ItemUnmounted("text")
	m.PoolAcquire("text", true)
	m.DesyncRecovered()
	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}
	if NewMetrics(config.MetricsConfig{Enabled: false}) != nil {
		t.Error("disabled metrics should be nil")
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(config.MetricsConfig{Enabled: true, Namespace: "test"})
	m.ItemMounted("text")
	m.ItemMounted("text")
	m.ItemUnmounted("text")
	m.PoolAcquire("text", false)
	m.PoolDrop("text", "full")
	m.IncrementalTransitions(3, 1)

	if got := testutil.ToFloat64(m.mounts.WithLabelValues("text")); got != 2 {
		t.Errorf("mounts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.mountedItems); got != 1 {
		t.Errorf("mountedItems = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.incrementalOps.WithLabelValues("acquire")); got != 3 {
		t.Errorf("incremental acquires = %v, want 3", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "test_items_mounted_total") {
		t.Error("metrics handler should expose items_mounted_total")
	}
}

func TestTracerNestsSections(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := NewTracerWithProvider(provider)

	tr.BeginSection("MountState.mount")
	tr.BeginSection("MountState.prepareMount")
	if tr.Depth() != 2 {
		t.Fatalf("Depth = %d, want 2", tr.Depth())
	}
	tr.EndSection()
	tr.EndSection()
	tr.EndSection() // unbalanced end is ignored

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	child, parent := spans[0], spans[1]
	if child.Name() != "MountState.prepareMount" || parent.Name() != "MountState.mount" {
		t.Fatalf("unexpected span order %q, %q", child.Name(), parent.Name())
	}
	if child.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Error("prepareMount should be a child of mount")
	}
}

func TestNewTracerProviderDisabled(t *testing.T) {
	provider, err := NewTracerProvider(config.TracingConfig{Enabled: false})
	if err != nil || provider != nil {
		t.Errorf("disabled tracing = %v, %v; want nil, nil", provider, err)
	}
	if _, err := NewTracerProvider(config.TracingConfig{Enabled: true, Exporter: "zipkin"}); err == nil {
		t.Error("expected unsupported exporter error")
	}
}
