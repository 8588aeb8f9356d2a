package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudfu/cloudfu/telemetry"
)

// initTelemetry initializes OTEL for commands that record metrics.
// Metrics land in the Prometheus registry; traces and OTLP push turn
// on only when an endpoint is given here or via
// OTEL_EXPORTER_OTLP_ENDPOINT. Init failures never block a run.
func initTelemetry(ctx context.Context, endpoint string, insecure bool) func() {
	if os.Getenv("CLOUDFU_TELEMETRY_DISABLED") == "true" {
		return func() {}
	}

	cfg := telemetry.Config{
		ServiceName:    "cloudfu",
		ServiceVersion: version,
		Environment:    os.Getenv("CLOUDFU_ENVIRONMENT"),
		OTELEndpoint:   endpoint,
		Insecure:       insecure,
	}

	shutdown, err := telemetry.InitOTEL(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Telemetry initialization failed: %v\n", err)
		return func() {}
	}

	return func() {
		if err := shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error shutting down telemetry: %v\n", err)
		}
	}
}
