package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/itsmrshow/teamsreport/internal/cli"
	"github.com/itsmrshow/teamsreport/internal/logging"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Initialize default logger
	logging.Init(logging.Config{
		Level:  getEnv("TEAMSREPORT_LOG_LEVEL", "info"),
		Format: getEnv("TEAMSREPORT_LOG_FORMAT", "console"),
	})

	rootCmd := &cobra.Command{
		Use:   "teamsreport",
		Short: "teamsreport - Deliver report notifications to Microsoft Teams",
		Long: `teamsreport posts report notifications to Microsoft Teams incoming
webhooks as Adaptive Cards.

A card carries the report title, one kind of attachment (a CSV rendered as a
table, PNG screenshots, or embedded tabular data) and a description. Reports
can be sent once from the command line or on cron schedules with serve.`,
		Version:       fmt.Sprintf("%s (commit: %s, date: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")
	rootCmd.PersistentFlags().String("config", "", "Config file path (.yaml, .yml or .toml)")

	// Add commands
	rootCmd.AddCommand(cli.NewSendCommand())
	rootCmd.AddCommand(cli.NewPreviewCommand())
	rootCmd.AddCommand(cli.NewHistoryCommand())
	rootCmd.AddCommand(cli.NewServeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
