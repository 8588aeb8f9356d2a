package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudfu/cloudfu/internal/daemon"
)

var (
	daemonInterval     time.Duration
	daemonMetricsAddr  string
	daemonDryRun       bool
	daemonStrict       bool
	daemonOTELEndpoint string
	daemonOTELInsecure bool
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the pipeline continuously",
	Long: `Run cloudfu in daemon mode: the expand, gate and apply pipeline
re-runs at the configured interval, keeping the conf directory in
sync with the input trees.

The daemon serves Prometheus metrics on /metrics and health checks
on /health, /-/healthy and /-/ready, and shuts down cleanly on
SIGINT/SIGTERM.`,
	Example: `  cloudfu daemon                          # Re-apply every 5 minutes
  cloudfu daemon --interval 1m            # Custom interval
  cloudfu daemon --metrics-addr :9090     # Custom metrics address
  cloudfu daemon --dry-run                # Standing drift watch, no writes
  cloudfu daemon --otel-endpoint otel:4317  # Push traces and metrics`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 5*time.Minute, "Pass interval")
	daemonCmd.Flags().StringVar(&daemonMetricsAddr, "metrics-addr", ":2112", "Metrics HTTP server address")
	daemonCmd.Flags().BoolVar(&daemonDryRun, "dry-run", false, "Plan every pass without writing")
	daemonCmd.Flags().BoolVar(&daemonStrict, "strict", false, "Refuse to write on error severity warnings")
	daemonCmd.Flags().StringVar(&daemonOTELEndpoint, "otel-endpoint", "", "OTLP endpoint for metric and trace push")
	daemonCmd.Flags().BoolVar(&daemonOTELInsecure, "otel-insecure", true, "Use plaintext gRPC for the OTLP endpoint")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cleanup := initTelemetry(ctx, daemonOTELEndpoint, daemonOTELInsecure)
	defer cleanup()

	d, err := daemon.NewDaemon(ctx, cfg, daemon.Config{
		Interval:    daemonInterval,
		MetricsAddr: daemonMetricsAddr,
		DryRun:      daemonDryRun,
		Strict:      daemonStrict,
	})
	if err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	defer func() { _ = d.Close() }()

	fmt.Printf("🚀 Starting cloudfu daemon\n")
	fmt.Printf("   Interval: %s\n", daemonInterval)
	fmt.Printf("   Metrics: http://localhost:%d/metrics\n", d.MetricsPort())
	fmt.Printf("   Health: http://localhost:%d/health\n", d.MetricsPort())
	if daemonDryRun {
		fmt.Printf("   Mode: dry-run (drift watch)\n")
	}
	fmt.Println("\n✨ Daemon running (Ctrl+C to stop)...")

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	fmt.Println("\n👋 Daemon stopped")
	return nil
}
