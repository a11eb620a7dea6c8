package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/itsmrshow/teamsreport/internal/logging"
	"github.com/itsmrshow/teamsreport/internal/notification"
)

const (
	defaultHTTPTimeout = "30s"
	defaultRetryFactor = "10s"
	defaultRetryBase   = 2.0
	defaultAttempts    = 5
	defaultMetricsAddr = ":9464"
	defaultLockPath    = "teamsreport.lock"
	defaultRetention   = "720h"
	defaultJobTimeout  = "15m"
	defaultRunRPS      = 0.5
)

// Config is the teamsreport configuration file.
type Config struct {
	Log     logging.Config `yaml:"log" toml:"log"`
	HTTP    HTTPConfig     `yaml:"http" toml:"http"`
	Retry   RetryConfig    `yaml:"retry" toml:"retry"`
	Metrics MetricsConfig  `yaml:"metrics" toml:"metrics"`
	State   StateConfig    `yaml:"state" toml:"state"`
	Serve   ServeConfig    `yaml:"serve" toml:"serve"`
	Jobs    []Job          `yaml:"jobs" toml:"jobs"`
}

// HTTPConfig controls the webhook HTTP client.
type HTTPConfig struct {
	Timeout string `yaml:"timeout" toml:"timeout"`
}

// RetryConfig controls webhook retry backoff.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts" toml:"max_attempts"`
	Factor      string  `yaml:"factor" toml:"factor"`
	Base        float64 `yaml:"base" toml:"base"`
	Jitter      bool    `yaml:"jitter" toml:"jitter"`
}

// MetricsConfig controls the prometheus endpoint served by `serve`.
type MetricsConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// StateConfig controls the delivery history database.
type StateConfig struct {
	Path      string `yaml:"path" toml:"path"`
	Retention string `yaml:"retention" toml:"retention"`
}

// ServeConfig controls the scheduler daemon.
type ServeConfig struct {
	LockPath   string  `yaml:"lock_path" toml:"lock_path"`
	JobTimeout string  `yaml:"job_timeout" toml:"job_timeout"`
	// APIToken guards manual job runs over HTTP. Empty leaves them open.
	APIToken   string  `yaml:"api_token" toml:"api_token"`
	ReadOnly   bool    `yaml:"read_only" toml:"read_only"`
	RunRPS     float64 `yaml:"run_rps" toml:"run_rps"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:     logging.Config{Level: "info", Format: "console"},
		HTTP:    HTTPConfig{Timeout: defaultHTTPTimeout},
		Retry:   RetryConfig{MaxAttempts: defaultAttempts, Factor: defaultRetryFactor, Base: defaultRetryBase},
		Metrics: MetricsConfig{Addr: defaultMetricsAddr},
		State:   StateConfig{Retention: defaultRetention},
		Serve: ServeConfig{
			LockPath:   filepath.Join(os.TempDir(), defaultLockPath),
			JobTimeout: defaultJobTimeout,
			RunRPS:     defaultRunRPS,
		},
	}
}

// Load reads path (YAML or TOML by extension), applies environment
// overrides and fills defaults. An empty path yields the defaults plus
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnvOverrides()
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse toml config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.Log.Level = getEnv("TEAMSREPORT_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("TEAMSREPORT_LOG_FORMAT", c.Log.Format)
	c.HTTP.Timeout = getEnv("TEAMSREPORT_HTTP_TIMEOUT", c.HTTP.Timeout)
	c.Retry.MaxAttempts = getEnvInt("TEAMSREPORT_RETRY_MAX_ATTEMPTS", c.Retry.MaxAttempts)
	c.Retry.Factor = getEnv("TEAMSREPORT_RETRY_FACTOR", c.Retry.Factor)
	c.Retry.Base = getEnvFloat("TEAMSREPORT_RETRY_BASE", c.Retry.Base)
	c.Retry.Jitter = getEnvBool("TEAMSREPORT_RETRY_JITTER", c.Retry.Jitter)
	c.Metrics.Addr = getEnv("TEAMSREPORT_METRICS_ADDR", c.Metrics.Addr)
	c.State.Path = getEnv("TEAMSREPORT_STATE_DB", c.State.Path)
	c.Serve.LockPath = getEnv("TEAMSREPORT_LOCK_PATH", c.Serve.LockPath)
	c.Serve.JobTimeout = getEnv("TEAMSREPORT_JOB_TIMEOUT", c.Serve.JobTimeout)
	c.Serve.APIToken = getEnv("TEAMSREPORT_API_TOKEN", c.Serve.APIToken)
	c.Serve.ReadOnly = getEnvBool("TEAMSREPORT_READ_ONLY", c.Serve.ReadOnly)
}

// Normalize applies defaults to empty fields.
func (c Config) Normalize() Config {
	defaults := Default()
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.HTTP.Timeout == "" {
		c.HTTP.Timeout = defaults.HTTP.Timeout
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if c.Retry.Factor == "" {
		c.Retry.Factor = defaults.Retry.Factor
	}
	if c.Retry.Base == 0 {
		c.Retry.Base = defaults.Retry.Base
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = defaults.Metrics.Addr
	}
	if c.State.Retention == "" {
		c.State.Retention = defaults.State.Retention
	}
	if c.Serve.LockPath == "" {
		c.Serve.LockPath = defaults.Serve.LockPath
	}
	if c.Serve.JobTimeout == "" {
		c.Serve.JobTimeout = defaults.Serve.JobTimeout
	}
	return c
}

// Validate ensures configuration is reasonable.
func (c Config) Validate() error {
	if _, err := parsePositiveDuration("http.timeout", c.HTTP.Timeout); err != nil {
		return err
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if _, err := time.ParseDuration(c.Retry.Factor); err != nil {
		return fmt.Errorf("invalid retry.factor %q: %w", c.Retry.Factor, err)
	}
	if c.Retry.Base < 1 {
		return fmt.Errorf("retry.base must be >= 1, got %v", c.Retry.Base)
	}
	if _, err := parsePositiveDuration("state.retention", c.State.Retention); err != nil {
		return err
	}
	if _, err := parsePositiveDuration("serve.job_timeout", c.Serve.JobTimeout); err != nil {
		return err
	}
	if c.Serve.RunRPS < 0 {
		return fmt.Errorf("serve.run_rps must not be negative, got %v", c.Serve.RunRPS)
	}

	seen := make(map[string]struct{}, len(c.Jobs))
	for i, job := range c.Jobs {
		if err := job.Validate(); err != nil {
			return fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if _, dup := seen[job.Name]; dup {
			return fmt.Errorf("jobs[%d]: duplicate job name %q", i, job.Name)
		}
		seen[job.Name] = struct{}{}
	}
	return nil
}

// HTTPTimeout returns the webhook client timeout.
func (c Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultHTTPTimeout)
	}
	return d
}

// RetentionPeriod returns how long delivery history is kept.
func (c Config) RetentionPeriod() time.Duration {
	d, err := time.ParseDuration(c.State.Retention)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultRetention)
	}
	return d
}

// JobTimeout returns the per-run timeout for scheduled jobs.
func (c Config) JobTimeout() time.Duration {
	d, err := time.ParseDuration(c.Serve.JobTimeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultJobTimeout)
	}
	return d
}

// RetryPolicy builds the webhook retry policy.
func (c Config) RetryPolicy() notification.RetryPolicy {
	policy := notification.DefaultRetryPolicy()
	if c.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.Retry.MaxAttempts
	}
	if factor, err := time.ParseDuration(c.Retry.Factor); err == nil {
		policy.Factor = factor
	}
	if c.Retry.Base >= 1 {
		policy.Base = c.Retry.Base
	}
	policy.Jitter = c.Retry.Jitter
	return policy
}

func parsePositiveDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return d, nil
}

// validateSchedule checks a standard five-field cron expression.
func validateSchedule(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}
