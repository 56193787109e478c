package daemon

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// logLevel backs the default handler so the level can change at runtime.
var logLevel = new(slog.LevelVar)

// SetupLogger installs the default slog logger for cfg, writing to stderr.
func SetupLogger(cfg LoggingConfig) *slog.Logger {
	return setupLogger(os.Stderr, cfg)
}

func setupLogger(w io.Writer, cfg LoggingConfig) *slog.Logger {
	logLevel.Set(parseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// SetLogLevel changes the level of the installed logger.
func SetLogLevel(level string) {
	logLevel.Set(parseLevel(level))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
