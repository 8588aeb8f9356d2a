package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cloudfu/cloudfu/applier"
	"github.com/cloudfu/cloudfu/internal/runner"
)

var diffShowUnchanged bool

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show pending changes against the conf directory",
	Long: `Run the expansion and compare the rendered files with what is on
disk, without writing anything.

Exits 1 when any file would be created or updated, so the command
works as a drift check in scripts and CI.`,
	Example: `  cloudfu diff               # List pending changes
  cloudfu diff --unchanged   # Also list files already up to date`,
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().BoolVar(&diffShowUnchanged, "unchanged", false, "Also list files that are up to date")
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res, err := runner.Expand(cfg)
	if err != nil {
		return fmt.Errorf("expansion failed: %w", err)
	}
	displayWarnings(res.Warnings)

	ap := applier.New(applier.Options{
		ConfDir:  cfg.ConfDir,
		FileMode: cfg.FilePerm(),
		DirMode:  cfg.DirPerm(),
		DryRun:   true,
	}, log.Logger)
	summary, err := ap.Apply(res)
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}

	displayChanges(summary)

	if summary.Changed() {
		os.Exit(1)
	}
	return nil
}

func displayChanges(summary *applier.Summary) {
	for _, change := range summary.Changes {
		if change.Status == applier.StatusUnchanged && !diffShowUnchanged {
			continue
		}
		fmt.Println(formatChange(change))
	}
	if !summary.Changed() {
		fmt.Println("✨ Everything up to date")
		return
	}
	fmt.Printf("\n%d to create, %d to update, %d unchanged\n",
		summary.Created, summary.Updated, summary.Unchanged)
}

func formatChange(change applier.FileChange) string {
	glyph := "="
	switch change.Status {
	case applier.StatusCreated:
		glyph = "+"
	case applier.StatusUpdated:
		glyph = "~"
	}
	return fmt.Sprintf("%s %s (%d bytes)", glyph, change.Path, change.Bytes)
}
