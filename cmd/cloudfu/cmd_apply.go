package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudfu/cloudfu/internal/runner"
	"github.com/cloudfu/cloudfu/telemetry"
)

var (
	applyDryRun bool
	applyStrict bool
)

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Expand, gate and write the config trees",
	Long: `Run the full pipeline: expand the input trees, check the result
against loaded policies, and write the rendered files under the
configured conf directory.

Every pass records a revision in the state store and journals the
per-file change set. Unchanged files are never rewritten.`,
	Example: `  cloudfu apply             # Apply and record a revision
  cloudfu apply --dry-run   # Plan the change set without writing
  cloudfu apply --strict    # Refuse to write on any error severity warning`,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Plan the change set without writing")
	applyCmd.Flags().BoolVar(&applyStrict, "strict", false, "Refuse to apply when the run carries error severity warnings")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cleanup := initTelemetry(ctx, "", true)
	defer cleanup()

	r, err := runner.New(ctx, cfg, telemetry.NewLogger("cloudfu"))
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	if applyDryRun {
		fmt.Println("🔍 Dry-run mode - nothing will be written")
	}

	out, err := r.RunOnce(ctx, runner.Options{
		Command: "apply",
		DryRun:  applyDryRun,
		Strict:  applyStrict,
	})
	if out != nil && out.Result != nil {
		displayWarnings(out.Result.Warnings)
	}
	if err != nil {
		return err
	}

	displayOutcome(out)
	return nil
}

func displayOutcome(out *runner.Outcome) {
	verb := "Applied"
	if out.Summary.DryRun {
		verb = "Planned"
	}
	fmt.Printf("\n✅ %s revision %d\n", verb, out.Revision)
	fmt.Printf("  📄 Created: %d\n", out.Summary.Created)
	fmt.Printf("  ✏️  Updated: %d\n", out.Summary.Updated)
	fmt.Printf("  💤 Unchanged: %d\n", out.Summary.Unchanged)
	fmt.Printf("  ⏱️  Duration: %s\n", out.Duration.Round(time.Millisecond))
}
