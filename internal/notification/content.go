package notification

import "context"

// RecipientTypeTeams identifies a Microsoft Teams incoming webhook recipient.
const RecipientTypeTeams = "Teams"

// Kind names the attachment carried by a report.
type Kind string

const (
	KindNone         Kind = "none"
	KindCSV          Kind = "csv"
	KindScreenshots  Kind = "screenshots"
	KindEmbeddedData Kind = "embedded_data"
)

// Content describes the report being delivered.
type Content struct {
	Name         string
	Description  string
	URL          string
	CSV          Source
	Screenshots  []Source
	EmbeddedData *Table
}

// kindPrecedence is the order in which attachments are considered when more
// than one is set. The first populated kind wins.
var kindPrecedence = []Kind{KindCSV, KindScreenshots, KindEmbeddedData}

// Kind returns the attachment kind that will be rendered.
func (c Content) Kind() Kind {
	for _, kind := range kindPrecedence {
		if c.has(kind) {
			return kind
		}
	}
	return KindNone
}

func (c Content) has(kind Kind) bool {
	switch kind {
	case KindCSV:
		return c.CSV != nil
	case KindScreenshots:
		return len(c.Screenshots) > 0
	case KindEmbeddedData:
		return c.EmbeddedData != nil
	}
	return false
}

// Recipient carries the serialized per-recipient configuration.
type Recipient struct {
	Type       string
	ConfigJSON string
}

// Notifier delivers one notification.
type Notifier interface {
	Send(ctx context.Context) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context) error

// Send calls f(ctx).
func (f NotifierFunc) Send(ctx context.Context) error {
	return f(ctx)
}
