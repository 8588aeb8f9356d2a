// Package daemon re-runs the gated apply pass on an interval and
// serves Prometheus metrics and health endpoints while doing so. The
// ticker loop, the HTTP server and the signal handler run as one
// group; when any of them stops, the rest shut down with it.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"

	"github.com/cloudfu/cloudfu/config"
	"github.com/cloudfu/cloudfu/internal/runner"
	"github.com/cloudfu/cloudfu/journal"
	"github.com/cloudfu/cloudfu/telemetry"
)

// Config holds daemon configuration
type Config struct {
	Interval    time.Duration
	MetricsAddr string
	// DryRun makes every pass plan only, a standing watch mode
	DryRun bool
	// Strict makes passes refuse to write on error severity warnings
	Strict bool
}

// Daemon manages the continuous apply loop
type Daemon struct {
	cfg       Config
	appCfg    *config.Config
	runner    *runner.Runner
	logger    *telemetry.Logger
	listener  net.Listener
	startTime time.Time
	passCount atomic.Int64
	lastRev   atomic.Int64
}

// NewDaemon opens the pipeline state and binds the metrics listener
func NewDaemon(ctx context.Context, appCfg *config.Config, cfg Config) (*Daemon, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":2112"
	}

	logger := telemetry.NewLogger("cloudfu-daemon")
	r, err := runner.New(ctx, appCfg, logger)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	return &Daemon{
		cfg:       cfg,
		appCfg:    appCfg,
		runner:    r,
		logger:    logger,
		listener:  ln,
		startTime: time.Now(),
	}, nil
}

// Close releases the pipeline state and the metrics listener
func (d *Daemon) Close() error {
	_ = d.listener.Close()
	return d.runner.Close()
}

// Start runs the loop, the metrics server and the signal handler until
// one of them stops. Returns nil on signal or context cancellation.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Logger.Info().
		Dur("interval", d.cfg.Interval).
		Str("metrics_addr", d.listener.Addr().String()).
		Bool("dry_run", d.cfg.DryRun).
		Msg("daemon starting")

	var g run.Group

	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	srv := &http.Server{
		Handler:           d.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Add(func() error {
		return srv.Serve(d.listener)
	}, func(error) {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	})

	loopCtx, cancelLoop := context.WithCancel(ctx)
	g.Add(func() error {
		d.loop(loopCtx)
		return nil
	}, func(error) {
		cancelLoop()
	})

	err := g.Run()

	var sig run.SignalError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &sig):
		d.logger.Logger.Info().Str("signal", sig.Signal.String()).Msg("daemon stopping")
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, http.ErrServerClosed):
		return nil
	default:
		return err
	}
}

// loop runs one pass immediately, then one per tick
func (d *Daemon) loop(ctx context.Context) {
	d.pass(ctx)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pass(ctx)
		}
	}
}

func (d *Daemon) pass(ctx context.Context) {
	out, err := d.runner.RunOnce(ctx, runner.Options{
		Command: "daemon",
		DryRun:  d.cfg.DryRun,
		Strict:  d.cfg.Strict,
	})
	d.passCount.Add(1)
	if err != nil {
		d.logger.Logger.Error().Err(err).Msg("pass failed")
		return
	}
	d.lastRev.Store(out.Revision)
	d.maintainJournal()
}

// maintainJournal logs journal issues and removes files past retention
func (d *Daemon) maintainJournal() {
	health := d.runner.JournalHealth()
	if !health.Healthy {
		d.logger.Logger.Warn().
			Strs("issues", health.Issues).
			Msg("journal needs attention")
	}
	if !health.NeedsCleanup {
		return
	}
	stats, err := journal.CleanupWithStats(runner.JournalDir(d.appCfg), journal.DefaultConfig())
	if err != nil {
		d.logger.Logger.Error().Err(err).Msg("journal cleanup failed")
		return
	}
	if stats.FilesRemoved > 0 {
		d.logger.Logger.Info().
			Int("files_removed", stats.FilesRemoved).
			Int64("bytes_freed", stats.BytesFreed).
			Msg("journal cleanup")
	}
}

// HealthStatus reports daemon liveness
type HealthStatus struct {
	Status       string `json:"status"`
	Uptime       int64  `json:"uptime_seconds"`
	Passes       int64  `json:"passes"`
	LastRevision int64  `json:"last_revision"`
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	return HealthStatus{
		Status:       "healthy",
		Uptime:       int64(time.Since(d.startTime).Seconds()),
		Passes:       d.passCount.Load(),
		LastRevision: d.lastRev.Load(),
	}
}

// PassCount returns how many passes have run
func (d *Daemon) PassCount() int64 {
	return d.passCount.Load()
}

// MetricsPort returns the port the metrics server is bound to
func (d *Daemon) MetricsPort() int {
	if addr, ok := d.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}
