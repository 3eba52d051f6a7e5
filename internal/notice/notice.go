// Package notice carries short human-readable outcomes from the engine to
// whoever is presenting them. Delivery is fire-and-forget.
package notice

import (
	"context"
	"log/slog"
	"sync"
)

// Level is the severity of a notice
type Level string

const (
	Success Level = "success"
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notice is one message
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier receives notices
type Notifier interface {
	Notify(level Level, message string)
}

// Log forwards notices to a slog.Logger
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(level Level, message string) {
	if l.Logger == nil {
		return
	}
	l.Logger.Log(context.Background(), slogLevel(level), message, "notice", string(level))
}

func slogLevel(level Level) slog.Level {
	switch level {
	case Error:
		return slog.LevelError
	case Warning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Recorder keeps notices in memory until drained, optionally forwarding
// each one to Next as it arrives.
type Recorder struct {
	Next Notifier

	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	r.notices = append(r.notices, Notice{Level: level, Message: message})
	r.mu.Unlock()
	if r.Next != nil {
		r.Next.Notify(level, message)
	}
}

// Drain returns and clears the recorded notices
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}

// Has reports whether a notice of the given level was recorded
func (r *Recorder) Has(level Level) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notices {
		if n.Level == level {
			return true
		}
	}
	return false
}

// Discard drops every notice
type Discard struct{}

func (Discard) Notify(Level, string) {}
