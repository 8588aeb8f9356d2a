package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudfu/cloudfu/internal/runner"
	"github.com/cloudfu/cloudfu/journal"
	"github.com/cloudfu/cloudfu/storage"
)

var (
	historyLimit   int
	historyJournal bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded apply revisions",
	Long: `List the revisions recorded in the state store, newest first.

With --journal the per-file apply journal is replayed instead, one
line per journaled file event.`,
	Example: `  cloudfu history              # Last 20 revisions
  cloudfu history --limit 5    # Last 5 revisions
  cloudfu history --journal    # Replay the apply journal`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of revisions to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyJournal, "journal", false, "Replay the apply journal instead of the revision list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if historyJournal {
		return replayJournal(runner.JournalDir(cfg))
	}

	store, err := storage.NewRunStore(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer func() { _ = store.Close() }()

	runs, err := store.History(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs yet")
		return nil
	}

	fmt.Printf("%-5s  %-19s  %-8s  %-4s  %7s  %7s  %9s  %5s  %5s\n",
		"REV", "STARTED", "COMMAND", "DRY", "CREATED", "UPDATED", "UNCHANGED", "WARN", "ERR")
	for _, run := range runs {
		fmt.Println(formatRun(run))
	}
	return nil
}

func formatRun(run storage.Run) string {
	dry := "no"
	if run.DryRun {
		dry = "yes"
	}
	return fmt.Sprintf("%-5d  %-19s  %-8s  %-4s  %7d  %7d  %9d  %5d  %5d",
		run.Revision,
		run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		run.Command,
		dry,
		run.Created,
		run.Updated,
		run.Unchanged,
		run.Warnings,
		run.Errors)
}

func replayJournal(dir string) error {
	count := 0
	err := journal.Replay(dir, time.Time{}, func(e *journal.Entry) error {
		fmt.Println(formatJournalEntry(e))
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replay journal: %w", err)
	}
	if count == 0 {
		fmt.Println("Journal is empty")
		return nil
	}

	stats := journal.GetStatsFromDir(dir, journal.DefaultConfig())
	fmt.Printf("\n%d files, %.1f KiB, sequences %d through %d\n",
		stats.TotalFiles,
		float64(stats.TotalSizeBytes)/1024,
		stats.FirstSequence,
		stats.LastSequence)
	return nil
}

func formatJournalEntry(e *journal.Entry) string {
	line := fmt.Sprintf("%s  #%-6d rev %-5d %-8s %s",
		e.Timestamp.Local().Format("2006-01-02 15:04:05"),
		e.Sequence,
		e.Revision,
		e.Type,
		e.Path)
	if e.Error != "" {
		line += "  error: " + e.Error
	}
	return line
}
