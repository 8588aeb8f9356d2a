package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// tracedContext returns a context carrying a recording span plus the
// exporter that will receive it
func tracedContext(t *testing.T) (context.Context, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	ctx, _ := provider.Tracer("test").Start(context.Background(), "test-span")
	return ctx, exporter
}

// hookOutput feeds one line through a logger carrying OTELHook
func hookOutput(ctx context.Context, level zerolog.Level) string {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Hook(OTELHook{})

	logger.WithLevel(level).Ctx(ctx).Msg("test message")
	return buf.String()
}

func TestOTELHook_PlainContext(t *testing.T) {
	out := hookOutput(context.Background(), zerolog.InfoLevel)

	assert.NotContains(t, out, "trace_id")
	assert.NotContains(t, out, "span_id")
}

func TestOTELHook_TracedContext(t *testing.T) {
	ctx, _ := tracedContext(t)
	out := hookOutput(ctx, zerolog.InfoLevel)

	assert.Contains(t, out, "trace_id")
	assert.Contains(t, out, "span_id")
}

func TestOTELHook_ErrorMarksSpan(t *testing.T) {
	ctx, exporter := tracedContext(t)
	_ = hookOutput(ctx, zerolog.ErrorLevel)

	trace.SpanFromContext(ctx).End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "test message", spans[0].Status.Description)
}

func TestNewLogger_ServiceField(t *testing.T) {
	logger := NewLogger("test-service")
	require.NotNil(t, logger)

	var buf bytes.Buffer
	scoped := logger.Output(&buf)
	scoped.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"service":"test-service"`)
}

func TestLogger_RunConvenience(t *testing.T) {
	logger := NewLogger("test")

	var buf bytes.Buffer
	logger.Logger = logger.Output(&buf)

	ctx := context.Background()
	logger.LogRunStart(ctx, "apply", true)
	logger.LogRunComplete(ctx, 7, 1, 2, 3, 0.25)

	out := buf.String()
	assert.Contains(t, out, `"command":"apply"`)
	assert.Contains(t, out, `"dry_run":true`)
	assert.Contains(t, out, `"revision":7`)
	assert.Contains(t, out, `"unchanged":3`)
}

func TestLogger_StoreError(t *testing.T) {
	logger := NewLogger("test")

	var buf bytes.Buffer
	logger.Logger = logger.Output(&buf)

	logger.LogStoreError(context.Background(), "record_run", assert.AnError)

	out := buf.String()
	assert.Contains(t, out, `"operation":"record_run"`)
	assert.Contains(t, out, `"level":"error"`)
}

func TestInitOTEL_PrometheusOnly(t *testing.T) {
	ctx := context.Background()

	shutdown, err := InitOTEL(ctx, Config{
		ServiceName:    "cloudfu-test",
		ServiceVersion: "test",
		Environment:    "test",
	})
	require.NoError(t, err)
	defer func() { _ = shutdown(ctx) }()

	require.NotNil(t, PrometheusRegistry)
	require.NotNil(t, RunsTotal)
	require.NotNil(t, FilesWritten)
	require.NotNil(t, WarningsTotal)
	require.NotNil(t, RunDuration)
	require.NotNil(t, StoreRevision)

	// Instruments must be usable without an OTLP collector around
	RunsTotal.Add(ctx, 1)
	RunDuration.Record(ctx, 0.1)
	StoreRevision.Record(ctx, 42)

	metrics, err := PrometheusRegistry.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range metrics {
		if strings.Contains(mf.GetName(), "cloudfu_runs") {
			found = true
		}
	}
	assert.True(t, found, "expected cloudfu runs counter in the registry")
}
