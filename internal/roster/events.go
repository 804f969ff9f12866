package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event types emitted by the Store.
const (
	EventReloaded     = "roster.reloaded"
	EventReloadFailed = "roster.reload_failed"
)

// Event describes one reload attempt.
type Event struct {
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Students    int       `json:"students"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// EventLogger receives reload events.
type EventLogger interface {
	LogEvent(event Event) error
}

// NopEventLogger ignores all events.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(Event) error {
	return nil
}

// MemoryEventLogger stores events in memory for tests.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{
		events: []Event{},
	}
}

func (l *MemoryEventLogger) LogEvent(event Event) error {
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// MultiEventLogger fans an event out to every logger. All loggers are
// called even when one fails.
type MultiEventLogger []EventLogger

func (m MultiEventLogger) LogEvent(event Event) error {
	var errs []error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.LogEvent(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PostgresEventLogger inserts events into the roster_events table.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

func (l *PostgresEventLogger) LogEvent(event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO roster_events (event_type, source, fingerprint, students, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.Type,
		event.Source,
		nullIfEmpty(event.Fingerprint),
		event.Students,
		nullIfEmpty(event.Error),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.Type,
		"source", event.Source,
		"fingerprint", event.Fingerprint,
	)
	return nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
