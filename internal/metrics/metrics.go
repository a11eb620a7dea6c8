package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/itsmrshow/teamsreport/internal/notification"
)

var (
	// NotificationsTotal counts send operations by channel and result. The
	// result is "ok" or the error kind label.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamsreport_notifications_total",
		Help: "Total number of report notifications sent",
	}, []string{"channel", "result"})

	// NotificationDuration observes end-to-end send durations, retries included.
	NotificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "teamsreport_notification_duration_seconds",
		Help:    "Report notification send duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"channel"})

	// NotificationsInFlight tracks sends currently in progress.
	NotificationsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teamsreport_notifications_in_flight",
		Help: "Report notifications currently being sent",
	}, []string{"channel"})

	// JobRunsTotal counts scheduled job executions by job and result.
	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamsreport_job_runs_total",
		Help: "Total number of scheduled report job runs",
	}, []string{"job", "result"})

	// ScheduledJobs tracks the number of jobs registered with the scheduler.
	ScheduledJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamsreport_scheduled_jobs",
		Help: "Current number of scheduled report jobs",
	})
)

// Result returns the metric label for err.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return notification.KindName(err)
}

// Instrument wraps n so every Send is counted and timed under channel.
func Instrument(channel string, n notification.Notifier) notification.Notifier {
	return notification.NotifierFunc(func(ctx context.Context) error {
		inFlight := NotificationsInFlight.WithLabelValues(channel)
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		err := n.Send(ctx)
		NotificationDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
		NotificationsTotal.WithLabelValues(channel, Result(err)).Inc()
		return err
	})
}
