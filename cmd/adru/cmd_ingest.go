package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/V4T54L/adru-export/internal/domain"
)

var (
	ingestInputDir string
	ingestTextDir  string
	ingestText     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [source.adru]",
	Short: "Register ADRU exports and store the messages of their decoded artifacts",
	Long: `Without arguments every .adru file of the input directory is ingested in
name order and the run stops at the first failure. With a source file only
that file is ingested; --text selects its decoded artifact explicitly.

Artifacts carrying attributes outside the database schema stop the run
before anything is written for them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, appOptions{reports: true}, func(ctx context.Context, a *app) error {
			if ingestTextDir != "" {
				a.cfg.TextDir = ingestTextDir
			}
			if ingestInputDir != "" {
				a.cfg.InputDir = ingestInputDir
			}
			a.startMetricsIfConfigured()
			uc := a.ingestUseCase()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				report, err := uc.IngestSource(ctx, args[0], ingestText)
				printReport(out, report)
				return err
			}

			if ingestText != "" {
				return errors.New("--text requires a source file argument")
			}
			reports, err := uc.IngestDir(ctx, a.cfg.InputDir)
			for _, r := range reports {
				printReport(out, r)
			}
			return err
		})
	},
}

func printReport(out io.Writer, r domain.IngestReport) {
	fmt.Fprintf(out, "%-8s %s", r.Status, r.SourceName)
	if r.ArtifactName != "" {
		fmt.Fprintf(out, " <- %s", r.ArtifactName)
	}
	fmt.Fprintf(out, " (%d messages, %d inserted)\n", r.Messages, r.Inserted)
	for ns, attrs := range r.Drift {
		fmt.Fprintf(out, "         drift %s: %v\n", ns, attrs)
	}
}

func init() {
	ingestCmd.Flags().StringVar(&ingestInputDir, "input", "", "directory of .adru files, overrides ADRU_INPUT_DIR")
	ingestCmd.Flags().StringVar(&ingestTextDir, "text-dir", "", "directory of decoded artifacts, overrides TEXT_DIR")
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "decoded artifact of the given source file")
}
