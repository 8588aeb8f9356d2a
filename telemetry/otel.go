package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	promclient "github.com/prometheus/client_golang/prometheus"
)

const scopeName = "github.com/cloudfu/cloudfu"

// Tracer and Meter are the process-wide instrumentation handles. They
// start as no-ops and are swapped in by InitOTEL.
var (
	Tracer = otel.Tracer(scopeName)
	Meter  = otel.Meter(scopeName)

	// PrometheusRegistry serves pull-based scraping. The OTEL prometheus
	// exporter registers itself here during InitOTEL.
	PrometheusRegistry *promclient.Registry
)

// Metric instruments, created by InitOTEL
var (
	RunsTotal        metric.Int64Counter
	FilesWritten     metric.Int64Counter
	WarningsTotal    metric.Int64Counter
	RunDuration      metric.Float64Histogram
	StoreRevision    metric.Int64Gauge
	ProfilesRendered metric.Int64Gauge
	HostsMapped      metric.Int64Gauge
)

// Config for OTEL initialization
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTELEndpoint   string // e.g. "localhost:4317", empty means Prometheus only
	Insecure       bool   // true for local dev
}

// InitOTEL wires up tracing and metrics. Metrics always export through
// the Prometheus registry; OTLP push for traces and metrics turns on
// only when an endpoint is configured.
func InitOTEL(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.OTELEndpoint == "" {
		cfg.OTELEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "cloudfu"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceShutdown, err := startTracing(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("failed to setup traces: %w", err)
	}

	metricShutdown, err := startMetrics(ctx, cfg, res)
	if err != nil {
		_ = traceShutdown(ctx)
		return nil, fmt.Errorf("failed to setup metrics: %w", err)
	}

	if err := createInstruments(); err != nil {
		_ = traceShutdown(ctx)
		_ = metricShutdown(ctx)
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	return func(ctx context.Context) error {
		var err error
		if e := traceShutdown(ctx); e != nil {
			err = fmt.Errorf("trace shutdown failed: %w", e)
		}
		if e := metricShutdown(ctx); e != nil && err == nil {
			err = fmt.Errorf("metric shutdown failed: %w", e)
		}
		return err
	}, nil
}

// noopShutdown stands in when a provider was never started
func noopShutdown(context.Context) error { return nil }

// startTracing installs an OTLP-exporting tracer provider. Without an
// endpoint the global no-op tracer stays in place.
func startTracing(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	if cfg.OTELEndpoint == "" {
		return noopShutdown, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTELEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	Tracer = provider.Tracer(scopeName)

	return provider.Shutdown, nil
}

// startMetrics installs a meter provider with dual export, Prometheus
// pull plus optional OTLP push
func startMetrics(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	PrometheusRegistry = promclient.NewRegistry()
	promExporter, err := prometheus.New(prometheus.WithRegisterer(PrometheusRegistry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	providerOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	}

	if cfg.OTELEndpoint != "" {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELEndpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithDialOption(
				grpc.WithTransportCredentials(insecure.NewCredentials()),
			))
		}

		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second)),
		))
	}

	provider := sdkmetric.NewMeterProvider(providerOpts...)

	otel.SetMeterProvider(provider)
	Meter = provider.Meter(scopeName)

	return provider.Shutdown, nil
}

// createInstruments builds every instrument on the active Meter
func createInstruments() error {
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&RunsTotal, "cloudfu.runs.total", "Total number of expansion runs"},
		{&FilesWritten, "cloudfu.files.written.total", "Total number of config files created or updated"},
		{&WarningsTotal, "cloudfu.warnings.total", "Total number of warnings raised during expansion"},
	}
	for _, c := range counters {
		counter, err := Meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	var err error
	RunDuration, err = Meter.Float64Histogram("cloudfu.run.duration.seconds",
		metric.WithDescription("Duration of expansion runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create cloudfu.run.duration.seconds: %w", err)
	}

	gauges := []struct {
		dst  *metric.Int64Gauge
		name string
		desc string
	}{
		{&StoreRevision, "cloudfu.store.revision.current", "Current run store revision number"},
		{&ProfilesRendered, "cloudfu.profiles.current", "Profiles rendered by the latest run"},
		{&HostsMapped, "cloudfu.hosts.current", "Hosts mapped by the latest run"},
	}
	for _, g := range gauges {
		gauge, err := Meter.Int64Gauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", g.name, err)
		}
		*g.dst = gauge
	}

	return nil
}
