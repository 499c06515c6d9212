package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	databaseURL    string
	vocabularyFile string
	logLevel       string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "adru",
	Short: "Parse decoded ADRU exports into a relational store and enrich CSV files",
	Long: `adru ingests the decoded text artifacts of ADRU recorder exports into a
relational database (SQLite or PostgreSQL) and joins the stored message
attributes onto semicolon-delimited CSV files keyed by message number.

Configuration is read from the environment (and a .env file); the flags
below override it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database", "", "database URL (sqlite://path or postgres://...), overrides DATABASE_URL")
	rootCmd.PersistentFlags().StringVar(&vocabularyFile, "vocabulary", "", "vocabulary YAML file, overrides VOCABULARY_FILE")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides LOG_LEVEL")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(serveCmd)
}
