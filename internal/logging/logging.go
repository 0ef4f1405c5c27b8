package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

type Option func(*options)

type options struct {
	writer  io.Writer
	service string
}

func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// WithService adds a "service" attribute to every record.
func WithService(name string) Option {
	return func(o *options) {
		o.service = strings.TrimSpace(name)
	}
}

// New returns a JSON logger writing to stdout unless WithWriter is given.
// Unknown levels fall back to info.
func New(level string, opts ...Option) *slog.Logger {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	writer := cfg.writer
	if writer == nil {
		writer = os.Stdout
	}

	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: ParseLevel(level)}))
	if cfg.service != "" {
		logger = logger.With("service", cfg.service)
	}
	return logger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRunID tags logger with a fresh run_id and returns the id.
func WithRunID(logger *slog.Logger) (*slog.Logger, string) {
	id := uuid.NewString()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return logger.With("run_id", id), id
}

// AttachError appends an "error" attribute when err is set.
func AttachError(err error, args ...any) []any {
	if err == nil {
		return args
	}
	return append(args, "error", err.Error())
}
