package delivery

import (
	"context"
	"net/http"
	"time"

	"github.com/itsmrshow/teamsreport/internal/logging"
	"github.com/itsmrshow/teamsreport/internal/metrics"
	"github.com/itsmrshow/teamsreport/internal/notification"
	"github.com/itsmrshow/teamsreport/internal/state"
	"github.com/itsmrshow/teamsreport/internal/teams"
)

const metricsChannel = "teams"

// Request is one report to deliver.
type Request struct {
	Job       string
	Content   notification.Content
	Recipient notification.Recipient
}

// Dispatcher sends report notifications and records their outcome.
type Dispatcher struct {
	client *http.Client
	retry  notification.RetryPolicy
	store  state.Store
	logger *logging.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher. store may be nil to skip history.
func NewDispatcher(client *http.Client, retry notification.RetryPolicy, store state.Store, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Dispatcher{
		client: client,
		retry:  retry,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Deliver sends req and returns the recorded delivery alongside the send
// error. A failure to record history is logged, never returned.
func (d *Dispatcher) Deliver(ctx context.Context, req Request) (*state.Delivery, error) {
	sender := teams.NewSender(req.Content, req.Recipient,
		teams.WithHTTPClient(d.client),
		teams.WithRetryPolicy(d.retry),
		teams.WithLogger(d.logger),
	)

	record := &state.Delivery{
		Report:    req.Content.Name,
		Job:       req.Job,
		Kind:      string(req.Content.Kind()),
		StartedAt: d.now(),
	}
	if urls, err := sender.WebhookURLs(); err == nil {
		record.WebhookCount = len(urls)
	}

	err := metrics.Instrument(metricsChannel, sender).Send(ctx)

	record.CompletedAt = d.now()
	record.Success = err == nil
	if err != nil {
		record.ErrorKind = notification.KindName(err)
		record.Error = err.Error()
	}

	if d.store != nil {
		// History must be written even if the send was cancelled.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if saveErr := d.store.SaveDelivery(saveCtx, record); saveErr != nil {
			d.logger.Warn().Err(saveErr).Str("report", record.Report).Msg("Failed to record delivery")
		}
	}

	return record, err
}
