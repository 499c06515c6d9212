package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sourcesJSON bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List ingested source files usable for enrichment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			sources, err := a.enrichUseCase().Sources(ctx)
			if err != nil {
				return err
			}
			if sourcesJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sources)
			}
			if len(sources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no ingested source files")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tHASH\tCREATED")
			for _, s := range sources {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Name, s.Hash, s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		})
	},
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "print JSON")
}
