// Package notify is the fire-and-forget side-effect port for the job
// handlers. Implementations deliver emails, webhooks, whatever. Their
// failures must never influence job completion or retry decisions, so callers
// log and drop any error.
package notify

import (
	"context"
	"log/slog"
)

// Event kinds emitted by the handlers.
const (
	KindContentReady = "content_ready"
	KindAudioReady   = "audio_ready"
	KindTokensSent   = "tokens_sent"
)

// Event is one notification to whoever cares about pipeline progress.
type Event struct {
	Kind     string
	CourseID string
	LessonID string
	UserID   string
	Detail   string
}

// Notifier delivers events. Implementations should swallow their own
// transient errors where possible; callers will drop whatever leaks out.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Log is the default Notifier: it just writes a structured log line.
type Log struct {
	Logger *slog.Logger
}

func (l *Log) Notify(_ context.Context, ev Event) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification",
		"kind", ev.Kind,
		"course_id", ev.CourseID,
		"lesson_id", ev.LessonID,
		"user_id", ev.UserID,
		"detail", ev.Detail)
	return nil
}
