// Package audit records an append-only trail of security and billing
// relevant actions and serves newest-first queries over it.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Storage persists events and answers queries.
type Storage interface {
	Store(ctx context.Context, event Event) error
	Query(ctx context.Context, criteria Criteria) ([]Event, error)
}

type contextExtractor func(context.Context) (string, bool)

// Logger builds events from the request context and writes them to Storage.
type Logger struct {
	storage            Storage
	requestIDExtractor contextExtractor
	ipExtractor        contextExtractor
	log                *slog.Logger
	now                func() time.Time
}

// Option configures Logger.
type Option func(*Logger)

// WithRequestIDExtractor copies the request id from ctx into each event.
func WithRequestIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) {
		l.requestIDExtractor = fn
	}
}

// WithIPExtractor copies the client ip from ctx into each event.
func WithIPExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) {
		l.ipExtractor = fn
	}
}

// WithLogger sets where Record reports storage failures.
func WithLogger(log *slog.Logger) Option {
	return func(l *Logger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates an audit logger. It panics on a nil storage.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &Logger{
		storage: storage,
		log:     slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log stores a successful action unless an option marks it failed.
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event := Event{
		ID:        uuid.NewString(),
		CreatedAt: l.now().UTC(),
		Action:    action,
		OK:        true,
	}
	if l.requestIDExtractor != nil {
		event.RequestID, _ = l.requestIDExtractor(ctx)
	}
	if l.ipExtractor != nil {
		event.IP, _ = l.ipExtractor(ctx)
	}
	for _, opt := range opts {
		opt(&event)
	}
	if err := event.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}

// Record is Log for callers whose outcome must not depend on the audit
// trail: failures are logged and swallowed.
func (l *Logger) Record(ctx context.Context, action string, opts ...EventOption) {
	if err := l.Log(ctx, action, opts...); err != nil {
		l.log.WarnContext(ctx, "audit event not stored",
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}

// Query returns events matching criteria, newest first.
func (l *Logger) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	return l.storage.Query(ctx, criteria.Normalize())
}
