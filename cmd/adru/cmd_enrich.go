package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/V4T54L/adru-export/internal/usecase"
)

var (
	enrichSource    int64
	enrichInputDir  string
	enrichOutputDir string
	enrichKey       string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich --source <id> [file.csv]...",
	Short: "Append stored message attributes to CSV rows keyed by message number",
	Long: `Joins the namespace records of the newest populated message file of the
source (see "adru sources") onto every CSV row whose key column matches a
stored message. Without file arguments every .csv of the CSV input directory
is enriched. Outputs are written as "<timestamp> (U) Merged, <name>".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if enrichSource <= 0 {
			return fmt.Errorf("--source is required")
		}
		return runWithApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			if enrichKey != "" {
				a.cfg.EnrichKeyColumn = enrichKey
			}
			outDir := a.cfg.CSVOutputDir
			if enrichOutputDir != "" {
				outDir = enrichOutputDir
			}
			a.startMetricsIfConfigured()
			uc := a.enrichUseCase()

			var results []usecase.EnrichResult
			var err error
			if len(args) == 0 {
				inDir := a.cfg.CSVInputDir
				if enrichInputDir != "" {
					inDir = enrichInputDir
				}
				results, err = uc.EnrichDir(ctx, inDir, enrichSource, outDir)
			} else {
				for _, path := range args {
					var res usecase.EnrichResult
					if res, err = uc.Enrich(ctx, path, enrichSource, outDir); err != nil {
						break
					}
					results = append(results, res)
				}
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%s: %d rows, %d matched, %d unmatched, %d invalid keys, +%d columns\n",
					r.OutputPath, r.Rows, r.Matched, r.Unmatched, r.InvalidKeys, len(r.AddedColumns))
			}
			return err
		})
	},
}

func init() {
	enrichCmd.Flags().Int64Var(&enrichSource, "source", 0, "id of the ingested source file")
	enrichCmd.Flags().StringVar(&enrichInputDir, "input", "", "directory of CSV files, overrides CSV_INPUT_DIR")
	enrichCmd.Flags().StringVar(&enrichOutputDir, "output", "", "output directory, overrides CSV_OUTPUT_DIR")
	enrichCmd.Flags().StringVar(&enrichKey, "key", "", "key column, overrides ENRICH_KEY_COLUMN")
}
