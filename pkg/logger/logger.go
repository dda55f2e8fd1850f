// Package logger builds the process-wide slog logger from the ENV and
// LOG_LEVEL configuration knobs.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Setup builds the logger and installs it as the slog default: JSON
// output in production for log shippers, text elsewhere for humans.
// level is the LOG_LEVEL config value; unrecognized values fall back to
// info.
func Setup(env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
