package optimistic

import (
	"log/slog"
	"sync"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is what the user sees: a toast in the dashboard, a line on
// stderr in the CLI.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to a slog logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notification) {
	if n.Level == LevelError {
		l.Logger.Error(n.Message, "title", n.Title)
		return
	}
	l.Logger.Info(n.Message, "title", n.Title)
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Recorder) Errors() []Notification {
	var out []Notification
	for _, n := range r.All() {
		if n.Level == LevelError {
			out = append(out, n)
		}
	}
	return out
}
