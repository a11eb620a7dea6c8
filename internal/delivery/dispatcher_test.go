package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/itsmrshow/teamsreport/internal/config"
	"github.com/itsmrshow/teamsreport/internal/logging"
	"github.com/itsmrshow/teamsreport/internal/notification"
	"github.com/itsmrshow/teamsreport/internal/state"
	"github.com/itsmrshow/teamsreport/internal/teams"
)

func fastRetry() notification.RetryPolicy {
	return notification.RetryPolicy{MaxAttempts: 3, Factor: time.Millisecond, Base: 2}
}

func newStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	store, err := state.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"), logging.Nop())
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return store
}

func recipient(t *testing.T, urls ...string) notification.Recipient {
	t.Helper()
	cfg, err := teams.RecipientConfig(urls...)
	if err != nil {
		t.Fatalf("RecipientConfig failed: %v", err)
	}
	return notification.Recipient{Type: notification.RecipientTypeTeams, ConfigJSON: cfg}
}

func TestDispatcherRecordsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newStore(t)
	dispatcher := NewDispatcher(server.Client(), fastRetry(), store, logging.Nop())

	content := notification.Content{Name: "Weekly revenue", CSV: notification.BytesSource("a\n1\n")}
	record, err := dispatcher.Deliver(context.Background(), Request{
		Job:       "weekly",
		Content:   content,
		Recipient: recipient(t, server.URL, server.URL),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !record.Success || record.WebhookCount != 2 || record.Kind != "csv" {
		t.Errorf("unexpected record: %+v", record)
	}

	history, err := store.ListDeliveriesByJob(context.Background(), "weekly", 10)
	if err != nil {
		t.Fatalf("ListDeliveriesByJob failed: %v", err)
	}
	if len(history) != 1 || history[0].ID != record.ID {
		t.Errorf("expected delivery in history, got %+v", history)
	}
}

func TestDispatcherRecordsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	store := newStore(t)
	dispatcher := NewDispatcher(server.Client(), fastRetry(), store, logging.Nop())

	record, err := dispatcher.Deliver(context.Background(), Request{
		Content:   notification.Content{Name: "Sessions"},
		Recipient: recipient(t, server.URL),
	})
	if !errors.Is(err, notification.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if record.Success || record.ErrorKind != "authorization" || record.Error == "" {
		t.Errorf("unexpected record: %+v", record)
	}

	history, err := store.ListDeliveries(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListDeliveries failed: %v", err)
	}
	if len(history) != 1 || history[0].Success {
		t.Errorf("expected failed delivery in history, got %+v", history)
	}
}

func TestDispatcherWithoutStore(t *testing.T) {
	dispatcher := NewDispatcher(nil, fastRetry(), nil, logging.Nop())
	record, err := dispatcher.Deliver(context.Background(), Request{
		Content:   notification.Content{Name: "x"},
		Recipient: notification.Recipient{ConfigJSON: "{}"},
	})
	if !errors.Is(err, notification.ErrParam) {
		t.Fatalf("expected param error, got %v", err)
	}
	if record.WebhookCount != 0 || record.ErrorKind != "param" {
		t.Errorf("unexpected record: %+v", record)
	}
}

func TestJobExecute(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(server.Client(), fastRetry(), nil, logging.Nop())
	job := NewJob(dispatcher, config.Job{
		Name:     "hourly",
		Schedule: "0 * * * *",
		Title:    "Hourly report",
		Targets:  []string{server.URL},
	})

	if job.Name() != "hourly" || job.Schedule() != "0 * * * *" {
		t.Errorf("unexpected job identity: %s %s", job.Name(), job.Schedule())
	}
	if err := job.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 webhook call, got %d", calls)
	}
}

func TestJobExecuteMissingCSV(t *testing.T) {
	dispatcher := NewDispatcher(nil, fastRetry(), nil, logging.Nop())
	job := NewJob(dispatcher, config.Job{
		Name:    "broken",
		CSV:     filepath.Join(t.TempDir(), "missing.csv"),
		Targets: []string{"http://127.0.0.1:1"},
	})
	if err := job.Execute(context.Background()); !errors.Is(err, notification.ErrUnprocessable) {
		t.Errorf("expected unprocessable error, got %v", err)
	}
}
