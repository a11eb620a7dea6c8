package notification

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is tabular report data with named columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Validate checks that every row has one value per column.
func (t *Table) Validate() error {
	if t == nil {
		return errors.New("table is nil")
	}
	if len(t.Columns) == 0 {
		return errors.New("table has no columns")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d values, expected %d", i+1, len(row), len(t.Columns))
		}
	}
	return nil
}

// ParseCSV reads a header row followed by data rows.
func ParseCSV(data []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("parse csv: no columns to parse")
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}

	table := &Table{Columns: make([]string, len(header))}
	for i, name := range header {
		table.Columns[i] = strings.TrimSpace(name)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}
