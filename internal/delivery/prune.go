package delivery

import (
	"context"
	"time"

	"github.com/itsmrshow/teamsreport/internal/logging"
	"github.com/itsmrshow/teamsreport/internal/state"
)

// PruneJobName is the scheduler name of the history retention job.
const PruneJobName = "history-prune"

// PruneJob removes delivery history older than its retention period.
type PruneJob struct {
	store     state.Store
	retention time.Duration
	logger    *logging.Logger
	now       func() time.Time
}

// NewPruneJob creates a retention job for store.
func NewPruneJob(store state.Store, retention time.Duration, logger *logging.Logger) *PruneJob {
	if logger == nil {
		logger = logging.Default()
	}
	return &PruneJob{
		store:     store,
		retention: retention,
		logger:    logger.WithComponent("history-prune"),
		now:       time.Now,
	}
}

// Name returns the job name.
func (j *PruneJob) Name() string {
	return PruneJobName
}

// Execute deletes deliveries completed before now minus retention.
func (j *PruneJob) Execute(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)
	deleted, err := j.store.PruneDeliveries(ctx, cutoff)
	if err != nil {
		return err
	}
	j.logger.Debug().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("History retention applied")
	return nil
}
