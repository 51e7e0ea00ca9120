package logger

import (
	"io"
	"os"
	"time"

	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"

	"github.com/akave-ai/meteringest/internal/config"
)

// New builds the service logger: JSON in production, console output
// otherwise. A nil config yields an info level console logger.
func New(cfg *config.ObservabilityConfig) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New writing to w.
func NewWithWriter(cfg *config.ObservabilityConfig, w io.Writer) zerolog.Logger {
	if cfg == nil {
		cfg = config.DefaultObservabilityConfig()
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || cfg.Logging.Level == "" {
		level = zerolog.InfoLevel
	}

	out := w
	if !cfg.IsProduction() {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("env", cfg.Environment).
		Logger()
}

// PgxTracer logs pgx queries through l. Queries are only logged at debug.
func PgxTracer(l zerolog.Logger) *tracelog.TraceLog {
	level := tracelog.LogLevelWarn
	if l.GetLevel() <= zerolog.DebugLevel {
		level = tracelog.LogLevelDebug
	}
	return &tracelog.TraceLog{
		Logger:   zerologadapter.NewLogger(l.With().Str("component", "pgx").Logger()),
		LogLevel: level,
	}
}
