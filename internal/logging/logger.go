package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup initializes the global slog logger with JSON output to stdout.
// Development builds log at DEBUG; everything else at INFO. Extra handlers
// (the PostgreSQL sink) receive every record they are enabled for.
func Setup(env string, extra ...slog.Handler) *slog.Logger {
	logger := New(os.Stdout, env, extra...)
	slog.SetDefault(logger)
	return logger
}

func New(w io.Writer, env string, extra ...slog.Handler) *slog.Logger {
	level := slog.LevelInfo
	if env == "development" {
		level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	if len(extra) > 0 {
		handler = NewMultiHandler(append([]slog.Handler{handler}, extra...)...)
	}
	return slog.New(handler)
}
