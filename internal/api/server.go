package api

import (
	"net/http"
	"slices"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/itsmrshow/teamsreport/internal/logging"
	"github.com/itsmrshow/teamsreport/internal/state"
)

// Config controls the ops API served next to the scheduler.
type Config struct {
	// Token, when set, is required as a Bearer token for manual runs.
	Token    string
	// ReadOnly disables manual runs.
	ReadOnly bool
	// RunRPS limits manual run requests per second. Zero disables limiting.
	RunRPS   float64
	RunBurst int
}

// Runner is the scheduler surface the API needs.
type Runner interface {
	GetJobs() []string
	RunNow(name string) error
}

// Server provides the metrics, health and delivery history endpoints.
type Server struct {
	cfg        Config
	runner     Runner
	store      state.Store
	logger     *logging.Logger
	runLimiter *rate.Limiter
}

// NewServer constructs the API server. store may be nil when history is
// disabled.
func NewServer(cfg Config, runner Runner, store state.Store, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}

	var limiter *rate.Limiter
	if cfg.RunRPS > 0 {
		burst := cfg.RunBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RunRPS), burst)
	}

	return &Server{
		cfg:        cfg,
		runner:     runner,
		store:      store,
		logger:     logger.WithComponent("api"),
		runLimiter: limiter,
	}
}

// Handler returns the http.Handler with routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.Handle("POST /api/jobs/{name}/run", s.requireWrite(http.HandlerFunc(s.handleRunJob)))
	mux.HandleFunc("GET /api/deliveries", s.handleDeliveries)

	return loggingMiddleware(mux, s.logger)
}

type healthResponse struct {
	Status  string `json:"status"`
	Jobs    int    `json:"jobs"`
	History bool   `json:"history"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Jobs:    len(s.runner.GetJobs()),
		History: s.store != nil,
	})
}

type jobsResponse struct {
	Jobs []string `json:"jobs"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, jobsResponse{Jobs: s.runner.GetJobs()})
}

type runResponse struct {
	Job    string `json:"job"`
	Status string `json:"status"`
}

// handleRunJob starts a job in the background. Its outcome lands in the
// delivery history and metrics.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !slices.Contains(s.runner.GetJobs(), name) {
		writeError(w, http.StatusNotFound, "job not found", name)
		return
	}

	s.logger.Info().Str("job", name).Msg("Manual run requested")
	go func() { _ = s.runner.RunNow(name) }()

	writeJSON(w, http.StatusAccepted, runResponse{Job: name, Status: "started"})
}

type deliveriesResponse struct {
	Items []state.Delivery `json:"items"`
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, deliveriesResponse{Items: []state.Delivery{}})
		return
	}

	limit := parseIntQuery(r, "limit", 50)
	job := r.URL.Query().Get("job")

	var (
		items []state.Delivery
		err   error
	)
	if job != "" {
		items, err = s.store.ListDeliveriesByJob(r.Context(), job, limit)
	} else {
		items, err = s.store.ListDeliveries(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history failed", err.Error())
		return
	}
	if items == nil {
		items = []state.Delivery{}
	}
	writeJSON(w, http.StatusOK, deliveriesResponse{Items: items})
}
