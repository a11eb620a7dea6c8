package delivery

import (
	"context"
	"fmt"

	"github.com/itsmrshow/teamsreport/internal/config"
)

// Job runs a configured report job through a Dispatcher. It implements
// scheduler.Job.
type Job struct {
	dispatcher *Dispatcher
	def        config.Job
}

// NewJob binds a job definition to a dispatcher.
func NewJob(dispatcher *Dispatcher, def config.Job) *Job {
	return &Job{dispatcher: dispatcher, def: def}
}

// Name returns the job name.
func (j *Job) Name() string {
	return j.def.Name
}

// Schedule returns the job's cron expression.
func (j *Job) Schedule() string {
	return j.def.Schedule
}

// Execute delivers the job's report once.
func (j *Job) Execute(ctx context.Context) error {
	content, err := j.def.Content()
	if err != nil {
		return fmt.Errorf("job %s: %w", j.def.Name, err)
	}
	recipient, err := j.def.Recipient()
	if err != nil {
		return fmt.Errorf("job %s: %w", j.def.Name, err)
	}
	_, err = j.dispatcher.Deliver(ctx, Request{
		Job:       j.def.Name,
		Content:   content,
		Recipient: recipient,
	})
	return err
}
