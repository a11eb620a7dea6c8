package state

import (
	"time"
)

// Delivery records one attempt to deliver a report notification.
type Delivery struct {
	ID           string    `json:"id"`
	Report       string    `json:"report"`
	Job          string    `json:"job,omitempty"`
	Kind         string    `json:"kind"`
	WebhookCount int       `json:"webhook_count"`
	Success      bool      `json:"success"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Duration returns how long the delivery took.
func (d Delivery) Duration() time.Duration {
	if d.CompletedAt.Before(d.StartedAt) {
		return 0
	}
	return d.CompletedAt.Sub(d.StartedAt)
}
