package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/datamart-payments-ledger/internal/config"
)

// NewLogger builds the process-wide slog.Logger. Output is JSON on stdout
// with the application name and environment stamped on every record, so the
// API and the worker can be told apart in shared log streams.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)

	opts := &slog.HandlerOptions{
		Level: level,
		// Source locations are only worth the noise when debugging
		AddSource: level == slog.LevelDebug,
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts)).With(
		"app", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	logger.Info("Logger initialized", "level", level.String())

	return logger
}

// parseLevel maps a config string onto a slog level, defaulting to info for
// anything unrecognized.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
