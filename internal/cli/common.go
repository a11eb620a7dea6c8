package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/itsmrshow/teamsreport/internal/config"
	"github.com/itsmrshow/teamsreport/internal/logging"
	"github.com/itsmrshow/teamsreport/internal/notification"
	"github.com/itsmrshow/teamsreport/internal/state"
	"github.com/itsmrshow/teamsreport/internal/teams"
)

// stdinPath reads an attachment from standard input.
const stdinPath = "-"

// loadConfig reads the file named by the persistent --config flag.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := ""
	if f := cmd.Flags().Lookup("config"); f != nil {
		path = f.Value.String()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// commandLogger builds a stderr logger from cfg, overridden by the
// --log-level and --log-format flags when set.
func commandLogger(cmd *cobra.Command, cfg config.Config) *logging.Logger {
	logCfg := cfg.Log
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		logCfg.Level = f.Value.String()
	}
	if f := cmd.Flags().Lookup("log-format"); f != nil && f.Changed {
		logCfg.Format = f.Value.String()
	}
	return logging.NewWithWriter(logCfg, cmd.ErrOrStderr())
}

func addContentFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "Report name shown as the card title")
	cmd.Flags().String("description", "", "Report description shown below the attachment")
	cmd.Flags().String("url", "", "Link back to the report")
	cmd.Flags().String("csv", "", "CSV attachment rendered as a table (- for stdin)")
	cmd.Flags().StringArray("screenshot", nil, "PNG screenshot attachment (repeatable)")
	cmd.Flags().String("embedded-csv", "", "CSV file rendered as embedded report data")
	_ = cmd.MarkFlagRequired("title")
}

// contentFromFlags builds the report content descriptor from the content
// flags. Attachment files are read when the payload is built.
func contentFromFlags(cmd *cobra.Command) (notification.Content, error) {
	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	url, _ := cmd.Flags().GetString("url")
	csvPath, _ := cmd.Flags().GetString("csv")
	screenshots, _ := cmd.Flags().GetStringArray("screenshot")
	embedded, _ := cmd.Flags().GetString("embedded-csv")

	content := notification.Content{
		Name:        title,
		Description: description,
		URL:         url,
	}

	switch csvPath {
	case "":
	case stdinPath:
		content.CSV = notification.NewReaderSource(cmd.InOrStdin())
	default:
		content.CSV = notification.PathSource(csvPath)
	}

	for _, path := range screenshots {
		content.Screenshots = append(content.Screenshots, notification.PathSource(path))
	}

	if embedded != "" {
		data, err := os.ReadFile(embedded)
		if err != nil {
			return notification.Content{}, fmt.Errorf("failed to read embedded csv: %w", err)
		}
		table, err := notification.ParseCSV(data)
		if err != nil {
			return notification.Content{}, notification.NewError(notification.ErrUnprocessable, "embedded csv "+embedded, err)
		}
		content.EmbeddedData = table
	}

	return content, nil
}

func addRecipientFlags(cmd *cobra.Command) {
	cmd.Flags().String("recipient-config", "", `Recipient config JSON, e.g. {"target": "https://..."}`)
	cmd.Flags().StringArray("target", nil, "Teams incoming webhook URL (repeatable)")
}

// recipientFromFlags builds the Teams recipient from either --recipient-config
// or one or more --target flags.
func recipientFromFlags(cmd *cobra.Command) (notification.Recipient, error) {
	raw, _ := cmd.Flags().GetString("recipient-config")
	targets, _ := cmd.Flags().GetStringArray("target")

	switch {
	case raw != "" && len(targets) > 0:
		return notification.Recipient{}, errors.New("use either --recipient-config or --target, not both")
	case raw != "":
		return notification.Recipient{Type: notification.RecipientTypeTeams, ConfigJSON: raw}, nil
	case len(targets) > 0:
		cfg, err := teams.RecipientConfig(targets...)
		if err != nil {
			return notification.Recipient{}, err
		}
		return notification.Recipient{Type: notification.RecipientTypeTeams, ConfigJSON: cfg}, nil
	default:
		return notification.Recipient{}, errors.New("a recipient is required: set --target or --recipient-config")
	}
}

// statePath returns the --state flag, falling back to the configured path.
func statePath(cmd *cobra.Command, cfg config.Config) string {
	if path, _ := cmd.Flags().GetString("state"); path != "" {
		return path
	}
	return cfg.State.Path
}

// openStore opens and initializes the delivery history database.
func openStore(ctx context.Context, path string, logger *logging.Logger) (*state.SQLiteStore, error) {
	store, err := state.NewSQLiteStore(path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	if err := store.Initialize(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}
	return store, nil
}
