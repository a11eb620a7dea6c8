package teams

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/itsmrshow/teamsreport/internal/logging"
	"github.com/itsmrshow/teamsreport/internal/notification"
)

func testPolicy() notification.RetryPolicy {
	return notification.RetryPolicy{MaxAttempts: 5, Factor: time.Millisecond, Base: 2}
}

func recipientFor(t *testing.T, urls ...string) notification.Recipient {
	t.Helper()
	cfg, err := RecipientConfig(urls...)
	if err != nil {
		t.Fatalf("RecipientConfig failed: %v", err)
	}
	return notification.Recipient{Type: notification.RecipientTypeTeams, ConfigJSON: cfg}
}

func newTestSender(content notification.Content, recipient notification.Recipient, client *http.Client) *Sender {
	return NewSender(content, recipient,
		WithHTTPClient(client),
		WithRetryPolicy(testPolicy()),
		WithLogger(logging.Nop()),
	)
}

func TestSender_Success(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := newTestSender(baseContent(), recipientFor(t, server.URL), server.Client())
	if err := sender.Send(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var msg map[string]any
	if err := json.Unmarshal(received, &msg); err != nil {
		t.Fatalf("webhook received invalid JSON: %v", err)
	}
	if msg["type"] != "message" {
		t.Errorf("unexpected payload type: %v", msg["type"])
	}

	want, _ := sender.Payload()
	if string(want) != string(received) {
		t.Error("posted body differs from Payload()")
	}
}

func TestSender_DeliversToEveryWebhookInOrder(t *testing.T) {
	var order []string
	handler := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			order = append(order, name)
			w.WriteHeader(http.StatusOK)
		}
	}
	first := httptest.NewServer(handler("first"))
	defer first.Close()
	second := httptest.NewServer(handler("second"))
	defer second.Close()

	sender := newTestSender(baseContent(), recipientFor(t, first.URL, second.URL), first.Client())
	if err := sender.Send(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("unexpected delivery order: %v", order)
	}
}

func TestSender_Forbidden_StopsDelivery(t *testing.T) {
	var firstCalls, secondCalls int32
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&firstCalls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&secondCalls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer second.Close()

	sender := newTestSender(baseContent(), recipientFor(t, first.URL, second.URL), first.Client())
	err := sender.Send(context.Background())
	if !errors.Is(err, notification.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if firstCalls != 1 {
		t.Errorf("expected 403 not to be retried, got %d calls", firstCalls)
	}
	if secondCalls != 0 {
		t.Errorf("expected second webhook to be skipped, got %d calls", secondCalls)
	}
}

func TestSender_ServerError_StopsDelivery(t *testing.T) {
	var firstCalls, secondCalls int32
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&firstCalls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&secondCalls, 1)
	}))
	defer second.Close()

	sender := newTestSender(baseContent(), recipientFor(t, first.URL, second.URL), first.Client())
	err := sender.Send(context.Background())
	if !errors.Is(err, notification.ErrMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if firstCalls != 1 {
		t.Errorf("expected 5xx not to be retried, got %d calls", firstCalls)
	}
	if secondCalls != 0 {
		t.Errorf("expected second webhook to be skipped, got %d calls", secondCalls)
	}
}

func TestSender_RateLimitThenSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := newTestSender(baseContent(), recipientFor(t, server.URL), server.Client())
	if err := sender.Send(context.Background()); err != nil {
		t.Fatalf("expected success after rate limiting, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestSender_TransportErrorRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var retries int
	policy := testPolicy()
	policy.OnRetry = func(int, time.Duration, error) { retries++ }

	sender := NewSender(baseContent(), recipientFor(t, url),
		WithRetryPolicy(policy),
		WithLogger(logging.Nop()),
	)
	err := sender.Send(context.Background())
	if !errors.Is(err, notification.ErrParam) {
		t.Fatalf("expected param error for unreachable webhook, got %v", err)
	}
	if !notification.IsTransient(err) {
		t.Errorf("expected transport failure to be marked transient")
	}
	if retries != 4 {
		t.Errorf("expected 4 retries, got %d", retries)
	}
}

func TestSender_MalformedRecipient_NoHTTPCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	for _, cfg := range []string{`{not json`, `{"channel": "x"}`, `{"target": ""}`} {
		recipient := notification.Recipient{Type: notification.RecipientTypeTeams, ConfigJSON: cfg}
		sender := newTestSender(baseContent(), recipient, server.Client())
		err := sender.Send(context.Background())
		if !errors.Is(err, notification.ErrParam) {
			t.Errorf("config %q: expected param error, got %v", cfg, err)
		}
	}
	if calls != 0 {
		t.Errorf("expected no HTTP calls, got %d", calls)
	}
}

func TestSender_UnprocessableContent_NoHTTPCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	content := baseContent()
	content.CSV = notification.BytesSource("a,b\n1\n")
	sender := newTestSender(content, recipientFor(t, server.URL), server.Client())

	err := sender.Send(context.Background())
	if !errors.Is(err, notification.ErrUnprocessable) {
		t.Fatalf("expected unprocessable error, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no HTTP calls, got %d", calls)
	}
}

func TestSender_InlineFiles(t *testing.T) {
	csv := notification.BytesSource("a\n1\n")
	shot := notification.BytesSource("png")
	table := &notification.Table{Columns: []string{"a"}}
	recipient := notification.Recipient{}

	content := baseContent()
	content.CSV = csv
	content.Screenshots = []notification.Source{shot}
	if files := NewSender(content, recipient, WithLogger(logging.Nop())).InlineFiles(); len(files) != 1 || files[0] == nil {
		t.Errorf("expected csv only, got %v", files)
	}

	content = baseContent()
	content.Screenshots = []notification.Source{shot, shot}
	if files := NewSender(content, recipient, WithLogger(logging.Nop())).InlineFiles(); len(files) != 2 {
		t.Errorf("expected both screenshots, got %d", len(files))
	}

	content = baseContent()
	content.EmbeddedData = table
	files := NewSender(content, recipient, WithLogger(logging.Nop())).InlineFiles()
	if files == nil || len(files) != 0 {
		t.Errorf("expected empty non-nil file list for embedded data, got %v", files)
	}
}

func TestSender_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	policy := notification.RetryPolicy{MaxAttempts: 5, Factor: time.Second, Base: 2}
	sender := NewSender(baseContent(), recipientFor(t, server.URL),
		WithHTTPClient(server.Client()),
		WithRetryPolicy(policy),
		WithLogger(logging.Nop()),
	)
	if err := sender.Send(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://example.webhook.office.com/webhookb2/secret-token")
	if got != "https://example.webhook.office.com" {
		t.Errorf("unexpected redaction: %s", got)
	}
	if redactURL("::not a url") != "invalid-url" {
		t.Error("expected invalid-url for unparsable input")
	}
}
