package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook correlates log lines with the active trace. Error-level lines
// also mark the span as failed.
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if !sc.IsValid() {
		return
	}

	e.Str("trace_id", sc.TraceID().String())
	e.Str("span_id", sc.SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger is a zerolog.Logger that stamps trace ids onto every line
// carrying a traced context
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks. Logs go to stderr so that
// rendered trees on stdout stay parseable.
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	base := zerolog.New(os.Stderr).
		With().
		Timestamp().
		Str("service", service).
		Logger()

	return &Logger{Logger: base.Hook(OTELHook{})}
}

// WithContext scopes the logger to ctx so the hook can find the span
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	scoped := l.With().Ctx(ctx).Logger()
	return &scoped
}

// Convenience methods for pipeline runs

func (l *Logger) LogRunStart(ctx context.Context, command string, dryRun bool) {
	l.WithContext(ctx).Info().
		Str("command", command).
		Bool("dry_run", dryRun).
		Msg("starting run")
}

func (l *Logger) LogRunComplete(ctx context.Context, revision int64, created, updated, unchanged int, durationSec float64) {
	l.WithContext(ctx).Info().
		Int64("revision", revision).
		Int("created", created).
		Int("updated", updated).
		Int("unchanged", unchanged).
		Float64("duration_s", durationSec).
		Msg("run completed")
}

func (l *Logger) LogStoreError(ctx context.Context, operation string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("operation", operation).
		Msg("store operation failed")
}
