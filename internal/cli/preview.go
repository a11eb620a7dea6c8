package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/itsmrshow/teamsreport/internal/logging"
	"github.com/itsmrshow/teamsreport/internal/notification"
	"github.com/itsmrshow/teamsreport/internal/teams"
)

// NewPreviewCommand creates the preview command
func NewPreviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the Teams payload for a report without sending it",
		Long: `Builds the Adaptive Card payload exactly as send would post it and
prints it to stdout. With --table, prints the tabular attachment instead.`,
		Args: cobra.NoArgs,
		RunE: runPreview,
	}

	addContentFlags(cmd)
	cmd.Flags().Bool("table", false, "Render the CSV or embedded data as a terminal table")
	cmd.Flags().Bool("compact", false, "Print the payload without indentation")

	return cmd
}

func runPreview(cmd *cobra.Command, args []string) error {
	content, err := contentFromFlags(cmd)
	if err != nil {
		return err
	}

	asTable, _ := cmd.Flags().GetBool("table")
	compact, _ := cmd.Flags().GetBool("compact")
	out := cmd.OutOrStdout()

	if asTable {
		table, err := previewTable(content)
		if err != nil {
			return err
		}
		return renderTable(out, table)
	}

	payload, err := teams.NewSender(content, notification.Recipient{}, teams.WithLogger(logging.Nop())).Payload()
	if err != nil {
		return err
	}
	if compact {
		_, err = fmt.Fprintln(out, string(payload))
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return fmt.Errorf("failed to format payload: %w", err)
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(out)
	return err
}

// previewTable returns the table the card would render for content.
func previewTable(content notification.Content) (*notification.Table, error) {
	switch content.Kind() {
	case notification.KindCSV:
		data, err := content.CSV.Bytes()
		if err != nil {
			return nil, notification.NewError(notification.ErrUnprocessable, "read csv", err)
		}
		table, err := notification.ParseCSV(data)
		if err != nil {
			return nil, notification.NewError(notification.ErrUnprocessable, "parse csv", err)
		}
		return table, nil
	case notification.KindEmbeddedData:
		return content.EmbeddedData, nil
	default:
		return nil, errors.New("report has no tabular attachment: set --csv or --embedded-csv")
	}
}

func renderTable(out io.Writer, table *notification.Table) error {
	if err := table.Validate(); err != nil {
		return err
	}

	header := make([]any, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = col
	}

	tw := tablewriter.NewWriter(out)
	tw.Header(header...)
	if err := tw.Bulk(table.Rows); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return tw.Render()
}
