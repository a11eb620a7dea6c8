package teams

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itsmrshow/teamsreport/internal/notification"
)

// ResolveWebhookURLs extracts the webhook URLs from the recipient's
// "target" setting.
func ResolveWebhookURLs(recipient notification.Recipient) ([]string, error) {
	var cfg map[string]json.RawMessage
	if err := json.Unmarshal([]byte(recipient.ConfigJSON), &cfg); err != nil {
		return nil, notification.NewError(notification.ErrParam, "parse recipient config", err)
	}

	raw, ok := cfg["target"]
	if !ok {
		return nil, notification.NewError(notification.ErrParam, `recipient config has no "target"`, nil)
	}
	var target string
	if err := json.Unmarshal(raw, &target); err != nil {
		return nil, notification.NewError(notification.ErrParam, `recipient "target" must be a string`, err)
	}

	urls := notification.SplitAddressList(target)
	if len(urls) == 0 {
		return nil, notification.NewError(notification.ErrParam, "recipient has no webhook urls", nil)
	}
	return urls, nil
}

// RecipientConfig encodes webhook URLs as a recipient config document.
func RecipientConfig(urls ...string) (string, error) {
	raw, err := json.Marshal(map[string]string{"target": strings.Join(urls, ",")})
	if err != nil {
		return "", fmt.Errorf("encode recipient config: %w", err)
	}
	return string(raw), nil
}
