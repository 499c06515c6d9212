package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema from the vocabulary if it is absent",
	Long: `Creates the file, message file and message tables plus one table per
vocabulary namespace. An existing schema is left untouched and loaded as the
fixed column set; new vocabulary attributes require a manual migration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s store ready\n", a.store.Dialect())
			for _, t := range a.store.Schema().Tables() {
				fmt.Fprintf(out, "  %-28s %4d attribute columns\n", t.Table(), len(t.Columns))
			}
			return nil
		})
	},
}
