package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/itsmrshow/teamsreport/internal/notification"
	"github.com/itsmrshow/teamsreport/internal/teams"
)

// Job is a report delivered to Teams on a cron schedule.
type Job struct {
	Name        string   `yaml:"name" toml:"name"`
	Schedule    string   `yaml:"schedule" toml:"schedule"`
	Title       string   `yaml:"title" toml:"title"`
	Description string   `yaml:"description" toml:"description"`
	URL         string   `yaml:"url" toml:"url"`
	CSV         string   `yaml:"csv" toml:"csv"`
	Screenshots []string `yaml:"screenshots" toml:"screenshots"`
	Embedded    string   `yaml:"embedded_csv" toml:"embedded_csv"`
	Targets     []string `yaml:"targets" toml:"targets"`
}

// Validate checks the job definition. Attachment files are checked when the
// job runs, since they are usually regenerated between runs.
func (j Job) Validate() error {
	if strings.TrimSpace(j.Name) == "" {
		return errors.New("job name required")
	}
	if err := validateSchedule(j.Schedule); err != nil {
		return fmt.Errorf("job %q: %w", j.Name, err)
	}
	if len(j.Targets) == 0 {
		return fmt.Errorf("job %q: at least one target webhook required", j.Name)
	}
	return nil
}

// Content builds the report content descriptor. Attachments are read from
// disk lazily when the payload is built.
func (j Job) Content() (notification.Content, error) {
	content := notification.Content{
		Name:        j.Title,
		Description: j.Description,
		URL:         j.URL,
	}
	if content.Name == "" {
		content.Name = j.Name
	}
	if j.CSV != "" {
		content.CSV = notification.PathSource(j.CSV)
	}
	for _, path := range j.Screenshots {
		content.Screenshots = append(content.Screenshots, notification.PathSource(path))
	}
	if j.Embedded != "" {
		data, err := os.ReadFile(j.Embedded)
		if err != nil {
			return notification.Content{}, fmt.Errorf("read embedded csv: %w", err)
		}
		table, err := notification.ParseCSV(data)
		if err != nil {
			return notification.Content{}, notification.NewError(notification.ErrUnprocessable, "embedded csv "+j.Embedded, err)
		}
		content.EmbeddedData = table
	}
	return content, nil
}

// Recipient builds the Teams recipient descriptor from the job targets.
func (j Job) Recipient() (notification.Recipient, error) {
	cfg, err := teams.RecipientConfig(j.Targets...)
	if err != nil {
		return notification.Recipient{}, err
	}
	return notification.Recipient{Type: notification.RecipientTypeTeams, ConfigJSON: cfg}, nil
}
