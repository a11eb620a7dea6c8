package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/itsmrshow/teamsreport/internal/state"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent report deliveries",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().String("state", "", "Path to delivery history database (SQLite)")
	cmd.Flags().String("job", "", "Only show deliveries for this job")
	cmd.Flags().Int("limit", 20, "Maximum number of deliveries to show")
	cmd.Flags().Bool("json", false, "Output as JSON")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := commandLogger(cmd, cfg)

	path := statePath(cmd, cfg)
	if path == "" {
		return errors.New("no history database: set --state or state.path")
	}
	job, _ := cmd.Flags().GetString("job")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := cmd.Context()
	store, err := openStore(ctx, path, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var deliveries []state.Delivery
	if job != "" {
		deliveries, err = store.ListDeliveriesByJob(ctx, job, limit)
	} else {
		deliveries, err = store.ListDeliveries(ctx, limit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if deliveries == nil {
			deliveries = []state.Delivery{}
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(deliveries)
	}

	if len(deliveries) == 0 {
		fmt.Fprintln(out, "No deliveries recorded.")
		return nil
	}
	return renderHistory(out, deliveries)
}

func renderHistory(out io.Writer, deliveries []state.Delivery) error {
	rows := make([][]string, 0, len(deliveries))
	for _, d := range deliveries {
		result := "ok"
		if !d.Success {
			result = d.ErrorKind
			if result == "" {
				result = "failed"
			}
		}
		rows = append(rows, []string{
			shortID(d.ID),
			d.Report,
			d.Job,
			d.Kind,
			strconv.Itoa(d.WebhookCount),
			result,
			d.Duration().Round(time.Millisecond).String(),
			d.CompletedAt.Local().Format(time.RFC3339),
		})
	}

	table := tablewriter.NewWriter(out)
	table.Header("ID", "Report", "Job", "Kind", "Webhooks", "Result", "Duration", "Completed")
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("failed to render history: %w", err)
	}
	return table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
