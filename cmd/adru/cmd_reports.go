package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reportsCount  int64
	reportsMaxLen int64
)

var errNoReportStream = errors.New("REDIS_ADDR is not configured")

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Show the newest ingest reports of the Redis report stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithApp(cmd, appOptions{reports: true}, func(ctx context.Context, a *app) error {
			if a.reports == nil {
				return errNoReportStream
			}
			reports, err := a.reports.Recent(ctx, reportsCount)
			if err != nil {
				return err
			}
			for _, r := range reports {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  ", r.FinishedAt.Local().Format("2006-01-02 15:04:05"))
				printReport(cmd.OutOrStdout(), r)
			}
			return nil
		})
	},
}

var reportsTrimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Cap the report stream to the newest entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithApp(cmd, appOptions{reports: true}, func(ctx context.Context, a *app) error {
			if a.reports == nil {
				return errNoReportStream
			}
			trimmed, err := a.reports.Trim(ctx, reportsMaxLen)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trimmed %d reports\n", trimmed)
			return nil
		})
	},
}

func init() {
	reportsCmd.Flags().Int64Var(&reportsCount, "count", 20, "number of reports to show")
	reportsTrimCmd.Flags().Int64Var(&reportsMaxLen, "maxlen", 1000, "number of reports to keep")
	reportsCmd.AddCommand(reportsTrimCmd)
}
