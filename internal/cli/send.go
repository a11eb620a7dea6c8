package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itsmrshow/teamsreport/internal/delivery"
	"github.com/itsmrshow/teamsreport/internal/state"
)

// NewSendCommand creates the send command
func NewSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a report notification to Microsoft Teams",
		Long: `Builds an Adaptive Card for the report and posts it to every Teams
incoming webhook in the recipient configuration, in order.

The card carries at most one kind of attachment. A CSV attachment wins over
screenshots, and screenshots win over embedded data. Transient failures are
retried with exponential backoff; delivery stops at the first webhook that
fails.`,
		Example: `  teamsreport send --title "Weekly revenue" --csv revenue.csv \
    --target https://example.webhook.office.com/webhookb2/...`,
		Args: cobra.NoArgs,
		RunE: runSend,
	}

	addContentFlags(cmd)
	addRecipientFlags(cmd)
	cmd.Flags().String("state", "", "Path to delivery history database (SQLite)")

	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := commandLogger(cmd, cfg)

	content, err := contentFromFlags(cmd)
	if err != nil {
		return err
	}
	recipient, err := recipientFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store state.Store
	if path := statePath(cmd, cfg); path != "" {
		sqlite, err := openStore(ctx, path, logger)
		if err != nil {
			return err
		}
		defer func() { _ = sqlite.Close() }()
		store = sqlite
	}

	dispatcher := delivery.NewDispatcher(&http.Client{Timeout: cfg.HTTPTimeout()}, cfg.RetryPolicy(), store, logger)
	record, err := dispatcher.Deliver(ctx, delivery.Request{
		Content:   content,
		Recipient: recipient,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Delivered %q to %d webhook(s) in %s\n", record.Report, record.WebhookCount, record.Duration().Round(time.Millisecond))
	if record.ID != "" {
		fmt.Fprintf(out, "Delivery ID: %s\n", record.ID)
	}
	return nil
}
