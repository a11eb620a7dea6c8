package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/itsmrshow/teamsreport/internal/logging"
	"github.com/itsmrshow/teamsreport/internal/metrics"
)

// DefaultJobTimeout bounds a single report job run, retries included.
const DefaultJobTimeout = 15 * time.Minute

// Job represents a scheduled report job
type Job interface {
	// Execute runs the job once
	Execute(ctx context.Context) error

	// Name returns the job name
	Name() string
}

// Scheduler runs report jobs on cron expressions
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]Job
	timeout time.Duration
	logger  *logging.Logger
	mu      sync.RWMutex
}

// NewScheduler creates a new scheduler. A non-positive timeout falls back to
// DefaultJobTimeout.
func NewScheduler(logger *logging.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &Scheduler{
		// A report still sending when its next tick fires is skipped.
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:    make(map[string]Job),
		timeout: timeout,
		logger:  logger.WithComponent("scheduler"),
	}
}

// AddJob registers job under a standard five-field cron expression
func (s *Scheduler) AddJob(cronExpr string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %q already registered", job.Name())
	}

	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	if _, err := s.cron.AddFunc(cronExpr, func() {
		s.executeJob(job)
	}); err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobs[job.Name()] = job
	metrics.ScheduledJobs.Set(float64(len(s.jobs)))

	s.logger.Info().
		Str("job", job.Name()).
		Str("schedule", cronExpr).
		Msg("Scheduled report job")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.RLock()
	jobCount := len(s.jobs)
	s.mu.RUnlock()

	s.logger.Info().
		Int("jobs", jobCount).
		Msg("Starting scheduler")

	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	s.logger.Info().Msg("Stopping scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// RunNow executes the named job immediately on the calling goroutine
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}
	return s.executeJob(job)
}

// executeJob runs a job with a timeout, logging and metrics
func (s *Scheduler) executeJob(job Job) error {
	s.logger.Info().
		Str("job", job.Name()).
		Msg("Running report job")

	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := job.Execute(ctx)
	duration := time.Since(start)
	metrics.JobRunsTotal.WithLabelValues(job.Name(), metrics.Result(err)).Inc()

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration", duration).
			Msg("Report job failed")
		return err
	}

	s.logger.Info().
		Str("job", job.Name()).
		Dur("duration", duration).
		Msg("Report job completed")
	return nil
}

// GetJobs returns the registered job names in sorted order
func (s *Scheduler) GetJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		jobs = append(jobs, name)
	}
	sort.Strings(jobs)
	return jobs
}
