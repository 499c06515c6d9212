package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var scanFailOnDrift bool

var scanCmd = &cobra.Command{
	Use:   "scan <artifact.txt>...",
	Short: "List the attributes of decoded artifacts and their drift, without writing",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			uc := a.ingestUseCase()
			out := cmd.OutOrStdout()
			drifted := 0

			for _, path := range args {
				res, err := uc.Scan(ctx, path)
				if err != nil {
					return err
				}
				st := res.Summary.Stats
				fmt.Fprintf(out, "%s: %d lines, %d messages, %d attributes, %d malformed\n",
					res.Artifact.Name, st.Lines, st.Messages, st.Attributes, st.Malformed)
				for _, ns := range res.Summary.Observed.Namespaces() {
					names := res.Summary.Observed.Sorted(ns)
					fmt.Fprintf(out, "  %s (%d): %s\n", ns, len(names), strings.Join(names, ", "))
				}
				if res.Drift.Empty() {
					fmt.Fprintln(out, "  no drift")
					continue
				}
				drifted++
				for _, nd := range res.Drift {
					fmt.Fprintf(out, "  DRIFT %s: %s\n", nd.Namespace, strings.Join(nd.Attributes, ", "))
				}
			}

			if drifted > 0 && scanFailOnDrift {
				return fmt.Errorf("%d of %d artifacts drift from the database schema", drifted, len(args))
			}
			return nil
		})
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanFailOnDrift, "fail-on-drift", true, "exit non-zero when any artifact drifts")
}
