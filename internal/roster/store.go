package roster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Store publishes the latest Snapshot of a Source. Readers always see one
// complete snapshot; a reload replaces it with a single pointer swap.
type Store struct {
	source  Source
	events  EventLogger
	current atomic.Pointer[Snapshot]

	// reloadMu serialises loads.
	reloadMu sync.Mutex
}

// NewStore creates a store over source. events may be nil.
func NewStore(source Source, events EventLogger) *Store {
	if events == nil {
		events = NopEventLogger{}
	}
	return &Store{source: source, events: events}
}

// Snapshot returns the current snapshot, or nil before the first load.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Ready reports whether a snapshot has been loaded.
func (s *Store) Ready() bool {
	return s.current.Load() != nil
}

// SourceName names the backing source.
func (s *Store) SourceName() string {
	return s.source.Name()
}

// Reload loads the source and publishes the result. On failure the
// previous snapshot stays in place.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	return s.reloadLocked(ctx)
}

// Refresh reloads only when the source fingerprint differs from the
// current snapshot. It reports whether a new snapshot was published.
func (s *Store) Refresh(ctx context.Context) (bool, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	fp, err := s.source.Fingerprint(ctx)
	if err != nil {
		return false, fmt.Errorf("fingerprinting roster: %w", err)
	}
	if cur := s.current.Load(); cur != nil && cur.Fingerprint == fp {
		return false, nil
	}
	if _, err := s.reloadLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Watch polls the source every interval until ctx is done. A zero or
// negative interval disables polling.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("watching roster for changes", "source", s.source.Name(), "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := s.Refresh(ctx)
			if err != nil {
				slog.Warn("roster refresh failed", "source", s.source.Name(), "error", err)
				continue
			}
			if changed {
				slog.Info("roster changed on disk, reloaded", "source", s.source.Name())
			}
		}
	}
}

func (s *Store) reloadLocked(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	snap, err := s.source.Load(ctx)
	if err != nil {
		s.emit(Event{Type: EventReloadFailed, Source: s.source.Name(), Error: err.Error()})
		return nil, fmt.Errorf("loading roster: %w", err)
	}

	s.current.Store(snap)
	slog.Info("roster loaded",
		"source", snap.Source,
		"students", len(snap.Students),
		"fingerprint", shortFingerprint(snap.Fingerprint),
		"duration", time.Since(start),
	)
	s.emit(Event{
		Type:        EventReloaded,
		Source:      snap.Source,
		Fingerprint: snap.Fingerprint,
		Students:    len(snap.Students),
		CreatedAt:   snap.LoadedAt,
	})
	return snap, nil
}

func (s *Store) emit(event Event) {
	if err := s.events.LogEvent(event); err != nil {
		slog.Warn("roster event not delivered", "type", event.Type, "error", err)
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
