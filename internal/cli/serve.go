package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/itsmrshow/teamsreport/internal/api"
	"github.com/itsmrshow/teamsreport/internal/config"
	"github.com/itsmrshow/teamsreport/internal/delivery"
	"github.com/itsmrshow/teamsreport/internal/logging"
	"github.com/itsmrshow/teamsreport/internal/scheduler"
	"github.com/itsmrshow/teamsreport/internal/state"
)

// pruneSchedule runs history retention at the top of every hour.
const pruneSchedule = "0 * * * *"

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled report jobs",
		Long: `Runs teamsreport as a daemon process with:
- Cron scheduling of the report jobs in the config file
- Delivery history with retention (when state.path is set)
- Prometheus metrics on /metrics and a /healthz probe
- A small JSON API: GET /api/jobs, GET /api/deliveries and
  POST /api/jobs/{name}/run`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("metrics-addr", "", "Metrics listen address (overrides metrics.addr)")
	cmd.Flags().String("state", "", "Path to delivery history database (SQLite)")
	cmd.Flags().Bool("run-on-start", false, "Run every job once at startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := commandLogger(cmd, cfg)

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	runOnStart, _ := cmd.Flags().GetBool("run-on-start")

	if len(cfg.Jobs) == 0 {
		return errors.New("no jobs configured: add a jobs section to the config file")
	}

	lock, err := acquireLock(cfg.Serve.LockPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn().Err(err).Msg("failed to release lock")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store state.Store
	if path := statePath(cmd, cfg); path != "" {
		sqlite, err := openStore(ctx, path, logger)
		if err != nil {
			return err
		}
		defer func() { _ = sqlite.Close() }()
		store = sqlite
	}

	sched, err := buildScheduler(cfg, store, logger)
	if err != nil {
		return err
	}

	apiServer := api.NewServer(api.Config{
		Token:    cfg.Serve.APIToken,
		ReadOnly: cfg.Serve.ReadOnly,
		RunRPS:   cfg.Serve.RunRPS,
		RunBurst: 1,
	}, sched, store, logger)

	httpServer := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("Metrics and API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sched.Start()
	if runOnStart {
		for _, job := range cfg.Jobs {
			go func(name string) { _ = sched.RunNow(name) }(job.Name)
		}
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	case err = <-serverErr:
		logger.Error().Err(err).Msg("metrics server error")
	}

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

// acquireLock takes the single-instance lock at path.
func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another teamsreport serve instance holds %s", path)
	}
	return lock, nil
}

// buildScheduler registers every configured job, plus history retention when
// a store is available.
func buildScheduler(cfg config.Config, store state.Store, logger *logging.Logger) (*scheduler.Scheduler, error) {
	dispatcher := delivery.NewDispatcher(&http.Client{Timeout: cfg.HTTPTimeout()}, cfg.RetryPolicy(), store, logger)
	sched := scheduler.NewScheduler(logger, cfg.JobTimeout())

	for _, def := range cfg.Jobs {
		job := delivery.NewJob(dispatcher, def)
		if err := sched.AddJob(job.Schedule(), job); err != nil {
			return nil, err
		}
	}

	if store != nil {
		prune := delivery.NewPruneJob(store, cfg.RetentionPeriod(), logger)
		if err := sched.AddJob(pruneSchedule, prune); err != nil {
			return nil, err
		}
	}
	return sched, nil
}
