package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cloudfu/cloudfu/applier"
	"github.com/cloudfu/cloudfu/internal/runner"
)

var (
	generateOutput string
	generateDir    string
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Expand the input trees and print the result",
	Long: `Run the expansion and print the three generated trees: provider
configs, instance profiles and host maps.

Nothing is written to the configured conf directory. Warnings go to
stderr so the rendered trees on stdout stay parseable.`,
	Example: `  cloudfu generate                  # Print YAML to stdout
  cloudfu generate -o json          # Print JSON instead
  cloudfu generate --dir ./preview  # Write the file layout to a directory`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Output format: yaml, json (default from config)")
	generateCmd.Flags().StringVar(&generateDir, "dir", "", "Write the rendered files under this directory instead of stdout")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res, err := runner.Expand(cfg)
	if err != nil {
		return fmt.Errorf("expansion failed: %w", err)
	}

	warnings := res.Warnings
	res.Warnings = nil
	displayWarnings(warnings)

	if generateDir != "" {
		ap := applier.New(applier.Options{
			ConfDir:  generateDir,
			FileMode: cfg.FilePerm(),
			DirMode:  cfg.DirPerm(),
		}, log.Logger)
		summary, err := ap.Apply(res)
		if err != nil {
			return fmt.Errorf("failed to write preview: %w", err)
		}
		fmt.Printf("📁 Wrote %d file(s) under %s\n", len(summary.Changes), generateDir)
		return nil
	}

	format := generateOutput
	if format == "" {
		format = cfg.Output
	}
	rendered, err := applier.Render(res, format)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(rendered)
	return err
}
