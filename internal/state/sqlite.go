package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/itsmrshow/teamsreport/internal/logging"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *logging.Logger
	path   string
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.WithComponent("sqlite-store"),
		path:   path,
	}, nil
}

// Initialize creates tables and indices
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	s.logger.Debug().Str("path", s.path).Msg("Initializing SQLite database")

	schema := `
		CREATE TABLE IF NOT EXISTS deliveries (
			id TEXT PRIMARY KEY,
			report TEXT NOT NULL,
			job TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			webhook_count INTEGER NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL,
			error_kind TEXT,
			error TEXT,
			started_at DATETIME NOT NULL,
			completed_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_deliveries_job ON deliveries(job);
		CREATE INDEX IF NOT EXISTS idx_deliveries_completed_at ON deliveries(completed_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveDelivery inserts a delivery record
func (s *SQLiteStore) SaveDelivery(ctx context.Context, delivery *Delivery) error {
	if delivery.ID == "" {
		delivery.ID = uuid.NewString()
	}
	if delivery.StartedAt.IsZero() {
		delivery.StartedAt = time.Now()
	}
	if delivery.CompletedAt.IsZero() {
		delivery.CompletedAt = delivery.StartedAt
	}

	query := `
		INSERT INTO deliveries (id, report, job, kind, webhook_count, success, error_kind, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		delivery.ID,
		delivery.Report,
		delivery.Job,
		delivery.Kind,
		delivery.WebhookCount,
		delivery.Success,
		nullString(delivery.ErrorKind),
		nullString(delivery.Error),
		delivery.StartedAt.UTC(),
		delivery.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save delivery: %w", err)
	}
	return nil
}

// ListDeliveries returns recent deliveries, newest first
func (s *SQLiteStore) ListDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	query := `
		SELECT id, report, job, kind, webhook_count, success, error_kind, error, started_at, completed_at
		FROM deliveries
		ORDER BY completed_at DESC, started_at DESC
		LIMIT ?
	`
	return s.queryDeliveries(ctx, query, normalizeLimit(limit))
}

// ListDeliveriesByJob returns recent deliveries for one job, newest first
func (s *SQLiteStore) ListDeliveriesByJob(ctx context.Context, job string, limit int) ([]Delivery, error) {
	query := `
		SELECT id, report, job, kind, webhook_count, success, error_kind, error, started_at, completed_at
		FROM deliveries
		WHERE job = ?
		ORDER BY completed_at DESC, started_at DESC
		LIMIT ?
	`
	return s.queryDeliveries(ctx, query, job, normalizeLimit(limit))
}

// PruneDeliveries deletes deliveries completed before olderThan
func (s *SQLiteStore) PruneDeliveries(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM deliveries WHERE completed_at < ?", olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune deliveries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned deliveries: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Time("older_than", olderThan).Msg("Pruned delivery history")
	}
	return n, nil
}

func (s *SQLiteStore) queryDeliveries(ctx context.Context, query string, args ...any) ([]Delivery, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var deliveries []Delivery
	for rows.Next() {
		var d Delivery
		var errorKind, errorText sql.NullString
		if err := rows.Scan(
			&d.ID,
			&d.Report,
			&d.Job,
			&d.Kind,
			&d.WebhookCount,
			&d.Success,
			&errorKind,
			&errorText,
			&d.StartedAt,
			&d.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		d.ErrorKind = errorKind.String
		d.Error = errorText.String
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deliveries: %w", err)
	}
	return deliveries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
