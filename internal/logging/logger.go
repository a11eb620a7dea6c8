package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog.Logger with teamsreport-specific helpers
type Logger struct {
	*zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "json" or "console"
}

// New creates a logger writing to stdout
func New(cfg Config) *Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a logger writing to out
func NewWithWriter(cfg Config, out io.Writer) *Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	output := out
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: &logger}
}

// Default returns a console logger at info level
func Default() *Logger {
	return New(Config{
		Level:  "info",
		Format: "console",
	})
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	logger := zerolog.Nop()
	return &Logger{Logger: &logger}
}

// WithComponent returns a new logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	logger := l.Logger.With().Str("component", component).Logger()
	return &Logger{Logger: &logger}
}

// WithReport returns a new logger tagged with the report name
func (l *Logger) WithReport(name string) *Logger {
	logger := l.Logger.With().Str("report", name).Logger()
	return &Logger{Logger: &logger}
}

// WithRecipient returns a new logger tagged with the recipient type
func (l *Logger) WithRecipient(recipientType string) *Logger {
	logger := l.Logger.With().Str("recipient_type", recipientType).Logger()
	return &Logger{Logger: &logger}
}

// Init initializes the global logger
func Init(cfg Config) {
	logger := New(cfg)
	log.Logger = *logger.Logger
}
