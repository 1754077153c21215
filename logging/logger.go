// Package logging provides structured logging for the transportation graph
// pipeline, following the teacher corpus's slog-wrapper idiom: a thin struct
// embedding *slog.Logger with domain-specific With*/event helper methods.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with pipeline/query-engine specific event helpers.
type Logger struct {
	*slog.Logger
	level slog.Level
}

// LogLevel mirrors slog.Level with a vocabulary local to this package, so
// callers do not need to import log/slog directly.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) toSlog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures logger creation.
type Config struct {
	Level         LogLevel
	Format        string // "json" or "text"
	Output        io.Writer
	IncludeSource bool
	Component     string
}

// New creates a structured logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Component == "" {
		cfg.Component = "tripgraph"
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.toSlog(), AddSource: cfg.IncludeSource}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(cfg.Output, opts)
	default:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	return &Logger{
		Logger: slog.New(handler).With("component", cfg.Component),
		level:  cfg.Level.toSlog(),
	}
}

// NewDefault returns a JSON logger at INFO level writing to stdout.
func NewDefault() *Logger {
	return New(Config{Level: LevelInfo, Format: "json", Component: "tripgraph"})
}

// WithWorker returns a logger annotated with a worker id and correlation id.
func (l *Logger) WithWorker(workerID, correlationID string) *Logger {
	return &Logger{l.With("worker_id", workerID, "correlation_id", correlationID), l.level}
}

// WithDataset returns a logger annotated with a dataset version.
func (l *Logger) WithDataset(datasetVersion string) *Logger {
	return &Logger{l.With("dataset_version", datasetVersion), l.level}
}

// WithGraphVersion returns a logger annotated with the graph version under
// construction or being read.
func (l *Logger) WithGraphVersion(version string) *Logger {
	return &Logger{l.With("graph_version", version), l.level}
}

// WithError returns a logger annotated with an error value.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{l.With("error", err.Error()), l.level}
}

// WorkerStart logs the beginning of a worker run.
func (l *Logger) WorkerStart(workerID string) {
	l.Info("worker started", "worker_id", workerID, "timestamp", time.Now().Format(time.RFC3339))
}

// WorkerComplete logs the end of a worker run.
func (l *Logger) WorkerComplete(workerID string, duration time.Duration, success bool, message string) {
	l.Info("worker completed",
		"worker_id", workerID,
		"duration_ms", duration.Milliseconds(),
		"success", success,
		"message", message,
	)
}

// GraphActivated logs the moment a new graph version becomes active — the
// single most important audit line in the pipeline, since it is the instant
// query readers start observing new data (spec §9 "atomic snapshot publication").
func (l *Logger) GraphActivated(version string, nodes, edges int, buildDuration time.Duration) {
	l.Info("graph activated",
		"graph_version", version,
		"nodes", nodes,
		"edges", edges,
		"build_duration_ms", buildDuration.Milliseconds(),
	)
}

// QueryCompleted logs a finished route query.
func (l *Logger) QueryCompleted(fromCity, toCity string, success bool, duration time.Duration) {
	l.Info("query completed",
		"from_city", fromCity,
		"to_city", toCity,
		"success", success,
		"duration_ms", duration.Milliseconds(),
	)
}

// Default is the process-wide logger instance used by package-level helpers.
var Default = NewDefault()
