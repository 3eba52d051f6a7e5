package cmd

import (
	"io"
	"log/slog"
	"strings"

	"devassist/internal/notice"
)

// EnvLogLevel selects the log level: debug, info, warn or error
const EnvLogLevel = "DVA_LOG_LEVEL"

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLogLevel(level)}))
}

// newNotices records notices for printing at the end of the command. With an
// explicit log level they are also written to the log as they happen.
func newNotices(level string) *notice.Recorder {
	r := &notice.Recorder{}
	if level != "" {
		r.Next = notice.Log{Logger: logger}
	}
	return r
}
