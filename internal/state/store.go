package state

import (
	"context"
	"time"
)

// Store defines the interface for delivery history persistence
type Store interface {
	// Initialize the store (create tables, run migrations)
	Initialize(ctx context.Context) error

	// Close the store connection
	Close() error

	// SaveDelivery records a delivery; an empty ID is filled in.
	SaveDelivery(ctx context.Context, delivery *Delivery) error

	// ListDeliveries returns the most recent deliveries, newest first.
	ListDeliveries(ctx context.Context, limit int) ([]Delivery, error)

	// ListDeliveriesByJob returns the most recent deliveries of one job.
	ListDeliveriesByJob(ctx context.Context, job string, limit int) ([]Delivery, error)

	// PruneDeliveries removes deliveries completed before olderThan.
	PruneDeliveries(ctx context.Context, olderThan time.Time) (int64, error)
}
