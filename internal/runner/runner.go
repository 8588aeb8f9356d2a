// Package runner drives one full pass of the tool: load the input
// trees, expand them, gate the result through loaded policies, apply
// the rendered files, and record what happened in the revision store
// and the journal.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloudfu/cloudfu/applier"
	"github.com/cloudfu/cloudfu/config"
	"github.com/cloudfu/cloudfu/expander"
	"github.com/cloudfu/cloudfu/journal"
	"github.com/cloudfu/cloudfu/policy"
	"github.com/cloudfu/cloudfu/storage"
	"github.com/cloudfu/cloudfu/telemetry"
	"github.com/cloudfu/cloudfu/types"
)

// Expand loads the three input trees from the data directory and runs
// the expansion. Pure: no policies, no filesystem writes.
func Expand(cfg *config.Config) (*types.Result, error) {
	in, err := config.LoadInputs(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return expander.New(cfg.Domain).Expand(in.Providers, in.Servers, in.Defaults)
}

// Options select how a pass runs
type Options struct {
	// Command names the invoking operation in run history
	Command string
	// DryRun plans the change set without writing
	DryRun bool
	// Strict refuses to apply when the run carries error severity warnings
	Strict bool
}

// Outcome is everything one pass produced
type Outcome struct {
	Revision int64
	Result   *types.Result
	Summary  *applier.Summary
	Duration time.Duration
}

// Runner owns the state needed across passes: the revision store, the
// journal, and the compiled policies
type Runner struct {
	cfg     *config.Config
	logger  *telemetry.Logger
	tracer  trace.Tracer
	engine  *policy.Engine
	store   *storage.RunStore
	journal *journal.Journal
}

// New opens the revision store and journal under the state directory
// and compiles the policy bundle when one is configured
func New(ctx context.Context, cfg *config.Config, logger *telemetry.Logger) (*Runner, error) {
	store, err := storage.NewRunStore(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	jrnl, err := journal.Open(JournalDir(cfg))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	r := &Runner{
		cfg:     cfg,
		logger:  logger,
		tracer:  otel.Tracer("runner"),
		store:   store,
		journal: jrnl,
	}

	if cfg.PolicyDir != "" {
		engine := policy.NewEngine()
		if err := policy.NewLoader(cfg.PolicyDir, engine).LoadAll(ctx); err != nil {
			r.Close()
			return nil, fmt.Errorf("load policies: %w", err)
		}
		r.engine = engine
	}

	return r, nil
}

// Close releases the store and journal
func (r *Runner) Close() error {
	jerr := r.journal.Close()
	serr := r.store.Close()
	if jerr != nil {
		return jerr
	}
	return serr
}

// Store exposes the revision store for history queries
func (r *Runner) Store() *storage.RunStore {
	return r.store
}

// JournalDir returns where the journal lives under the state directory
func JournalDir(cfg *config.Config) string {
	return filepath.Join(cfg.StateDir, "journal")
}

// JournalHealth reports the journal's self-check
func (r *Runner) JournalHealth() journal.HealthStatus {
	return r.journal.GetHealth()
}

// RunOnce executes one gated pass: expand, check policies, apply,
// record. Strict passes abort before the applier when any error
// severity warning is present.
func (r *Runner) RunOnce(ctx context.Context, opts Options) (*Outcome, error) {
	ctx, span := r.tracer.Start(ctx, "runner.run_once",
		trace.WithAttributes(
			attribute.String("command", opts.Command),
			attribute.Bool("dry_run", opts.DryRun)))
	defer span.End()

	start := time.Now()
	r.logger.LogRunStart(ctx, opts.Command, opts.DryRun)

	res, err := Expand(r.cfg)
	if err != nil {
		r.journalFailure(ctx, opts, err)
		return nil, err
	}

	if r.engine != nil {
		res.Warnings = append(res.Warnings, r.engine.Check(ctx, res)...)
	}
	r.recordWarnings(ctx, span, res.Warnings)

	if opts.Strict && res.Warnings.HasErrors() {
		err := fmt.Errorf("refusing to apply: run carries %d error(s)",
			res.Warnings.Count(types.SeverityError))
		r.journalFailure(ctx, opts, err)
		return &Outcome{Result: res, Duration: time.Since(start)}, err
	}

	summary, err := r.apply(res, opts.DryRun)
	if err != nil {
		r.journalFailure(ctx, opts, err)
		return &Outcome{Result: res, Duration: time.Since(start)}, err
	}

	rev, err := r.record(ctx, opts, res, summary)
	if err != nil {
		return &Outcome{Result: res, Summary: summary, Duration: time.Since(start)}, err
	}

	outcome := &Outcome{
		Revision: rev,
		Result:   res,
		Summary:  summary,
		Duration: time.Since(start),
	}
	r.finishTelemetry(ctx, span, opts, outcome)
	return outcome, nil
}

func (r *Runner) apply(res *types.Result, dryRun bool) (*applier.Summary, error) {
	ap := applier.New(applier.Options{
		ConfDir:  r.cfg.ConfDir,
		FileMode: r.cfg.FilePerm(),
		DirMode:  r.cfg.DirPerm(),
		Owner:    r.cfg.Owner,
		Group:    r.cfg.Group,
		DryRun:   dryRun,
	}, r.logger.Logger)
	return ap.Apply(res)
}

// record persists the run in the store and journals every file of the
// change set
func (r *Runner) record(ctx context.Context, opts Options, res *types.Result, summary *applier.Summary) (int64, error) {
	rev, err := r.store.RecordRun(storage.Run{
		Command:   opts.Command,
		DryRun:    summary.DryRun,
		Created:   summary.Created,
		Updated:   summary.Updated,
		Unchanged: summary.Unchanged,
		Warnings:  res.Warnings.Count(types.SeverityWarning),
		Errors:    res.Warnings.Count(types.SeverityError),
		Changes:   summary.Changes,
	})
	if err != nil {
		r.logger.LogStoreError(ctx, "record_run", err)
		return 0, fmt.Errorf("record run: %w", err)
	}

	span := trace.SpanFromContext(ctx)
	for _, change := range summary.Changes {
		entryType := entryTypeFor(change.Status, summary.DryRun)
		if err := r.journal.Append(entryType, change.Path, rev, change); err != nil {
			r.logger.LogStoreError(ctx, "journal_append", err)
			return rev, fmt.Errorf("journal change for %s: %w", change.Path, err)
		}
		if !summary.DryRun {
			telemetry.RecordFileAppliedEvent(span, change.Path, string(change.Status), change.Bytes)
		}
	}

	return rev, nil
}

// journalFailure leaves an audit trace for a pass that never reached
// the record stage
func (r *Runner) journalFailure(ctx context.Context, opts Options, cause error) {
	err := r.journal.AppendError(journal.EntryFailed, "", r.store.CurrentRevision(),
		map[string]string{"command": opts.Command}, cause)
	if err != nil {
		r.logger.LogStoreError(ctx, "journal_append", err)
	}
}

func (r *Runner) recordWarnings(ctx context.Context, span trace.Span, warnings types.Warnings) {
	for _, w := range warnings {
		telemetry.RecordWarningEvent(span, w.Stage, w.Provider, w.Environment,
			w.Role, string(w.Severity), w.Message)
		if telemetry.WarningsTotal != nil {
			telemetry.WarningsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("severity", string(w.Severity)),
				attribute.String("stage", w.Stage)))
		}
	}
}

func (r *Runner) finishTelemetry(ctx context.Context, span trace.Span, opts Options, out *Outcome) {
	seconds := out.Duration.Seconds()
	summary := out.Summary

	if telemetry.RunsTotal != nil {
		telemetry.RunsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("command", opts.Command),
			attribute.Bool("dry_run", summary.DryRun)))
		telemetry.RunDuration.Record(ctx, seconds, metric.WithAttributes(
			attribute.String("command", opts.Command)))
		telemetry.StoreRevision.Record(ctx, out.Revision)
		telemetry.ProfilesRendered.Record(ctx, countProfiles(out.Result))
		telemetry.HostsMapped.Record(ctx, countHosts(out.Result))
		if !summary.DryRun {
			telemetry.FilesWritten.Add(ctx, int64(summary.Created+summary.Updated))
		}
	}

	telemetry.RecordRunCompletedEvent(span, opts.Command,
		summary.Created, summary.Updated, summary.Unchanged,
		len(out.Result.Warnings), seconds)
	r.logger.LogRunComplete(ctx, out.Revision,
		summary.Created, summary.Updated, summary.Unchanged, seconds)
}

func entryTypeFor(status applier.FileStatus, dryRun bool) journal.EntryType {
	switch {
	case dryRun:
		return journal.EntryPlanned
	case status == applier.StatusUnchanged:
		return journal.EntrySkipped
	default:
		return journal.EntryApplied
	}
}

func countProfiles(res *types.Result) int64 {
	var n int64
	for _, profiles := range res.Profiles {
		n += int64(len(profiles))
	}
	return n
}

func countHosts(res *types.Result) int64 {
	var n int64
	for _, profiles := range res.Maps {
		for _, hosts := range profiles {
			n += int64(len(hosts))
		}
	}
	return n
}
