package teams

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/itsmrshow/teamsreport/internal/logging"
	"github.com/itsmrshow/teamsreport/internal/notification"
)

const (
	channelName    = "MS Teams"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 2048
)

// Sender delivers one report to every webhook of one Teams recipient.
type Sender struct {
	content   notification.Content
	recipient notification.Recipient
	client    *http.Client
	retry     notification.RetryPolicy
	logger    *logging.Logger
}

// Option configures a Sender.
type Option func(*Sender)

// WithHTTPClient sets the client used for webhook requests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Sender) {
		if client != nil {
			s.client = client
		}
	}
}

// WithRetryPolicy replaces the default backoff policy.
func WithRetryPolicy(policy notification.RetryPolicy) Option {
	return func(s *Sender) { s.retry = policy }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Sender) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSender creates a sender for content and recipient.
func NewSender(content notification.Content, recipient notification.Recipient, opts ...Option) *Sender {
	s := &Sender{
		content:   content,
		recipient: recipient,
		client:    &http.Client{Timeout: defaultTimeout},
		retry:     notification.DefaultRetryPolicy(),
		logger:    logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("teams").WithReport(content.Name).WithRecipient(notification.RecipientTypeTeams)
	return s
}

// InlineFiles returns the attachments passed to payload construction: the CSV
// if set, otherwise the screenshots. Embedded data is never returned here.
func (s *Sender) InlineFiles() []notification.Source {
	if s.content.CSV != nil {
		return []notification.Source{s.content.CSV}
	}
	if len(s.content.Screenshots) > 0 {
		return s.content.Screenshots
	}
	return []notification.Source{}
}

// WebhookURLs resolves the recipient's webhook URLs.
func (s *Sender) WebhookURLs() ([]string, error) {
	return ResolveWebhookURLs(s.recipient)
}

// Payload returns the JSON body that Send posts.
func (s *Sender) Payload() ([]byte, error) {
	return MarshalPayload(s.content, s.InlineFiles())
}

// Send posts the card to each webhook in order. The first failure stops
// delivery to the remaining webhooks.
func (s *Sender) Send(ctx context.Context) error {
	body, err := s.Payload()
	if err != nil {
		return err
	}

	urls, err := s.WebhookURLs()
	if err != nil {
		return err
	}
	s.logger.Info().Int("webhooks", len(urls)).Int("payload_bytes", len(body)).Msg("Sending Teams notification")

	for i, webhook := range urls {
		host := redactURL(webhook)
		policy := s.retry
		onRetry := s.retry.OnRetry
		policy.OnRetry = func(attempt int, wait time.Duration, err error) {
			s.logger.Warn().
				Err(err).
				Str("webhook", host).
				Int("attempt", attempt).
				Dur("backoff", wait).
				Msg("Retrying Teams webhook")
			if onRetry != nil {
				onRetry(attempt, wait, err)
			}
		}

		err := policy.Do(ctx, "teams webhook "+host, func(ctx context.Context) error {
			return s.post(ctx, webhook, body)
		})
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("webhook", host).
				Int("index", i).
				Str("kind", notification.KindName(err)).
				Msg("Teams webhook delivery failed")
			return err
		}
		s.logger.Debug().Str("webhook", host).Int("index", i).Msg("Teams webhook delivered")
	}
	return nil
}

func (s *Sender) post(ctx context.Context, webhook string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return notification.NewError(notification.ErrParam, "build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return notification.TransportError(channelName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	s.logger.Debug().Str("webhook", redactURL(webhook)).Int("status", resp.StatusCode).Msg("Teams webhook responded")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return notification.StatusError(channelName, resp.StatusCode, string(excerpt))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// redactURL keeps the scheme and host; the path of a webhook URL is a secret.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "invalid-url"
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
}
