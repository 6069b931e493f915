package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/qcjiangqianchen/bolt.diy/internal/log"
)

// ErrAppRequired is returned when an event or query names no app.
var ErrAppRequired = errors.New("analytics: app is required")

// Store persists page-view events.
type Store interface {
	// RecordEvent appends one event.
	RecordEvent(ctx context.Context, ev Event) error
	// EventsFor returns all retained events for one app, oldest first.
	EventsFor(ctx context.Context, app string) ([]Event, error)
	// Prune drops events recorded before cutoff, returning the count.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// PrunePeriodically prunes events older than retention on every interval
// tick until ctx is canceled. The memory store evicts inline on record, so
// this matters for the Postgres store, whose table would otherwise grow
// without bound. A retention or interval <= 0 disables pruning.
func PrunePeriodically(ctx context.Context, s Store, retention, interval time.Duration, logger log.Logger) {
	if retention <= 0 || interval <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("pruning analytics events", "error", err)
				}
				continue
			}
			if n > 0 {
				logger.Debug("pruned analytics events", "count", n)
			}
		}
	}
}

// MemoryStore is the in-process Store used when no database is configured.
// It holds at most maxEvents events and drops the oldest past retention.
type MemoryStore struct {
	mu        sync.Mutex
	events    []Event
	maxEvents int
	retention time.Duration
	logger    log.Logger
}

// NewMemoryStore creates a bounded in-memory store. maxEvents <= 0 means
// unbounded; retention <= 0 means keep forever.
func NewMemoryStore(maxEvents int, retention time.Duration, logger log.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		maxEvents: maxEvents,
		retention: retention,
		logger:    logger,
	}
}

func (s *MemoryStore) RecordEvent(_ context.Context, ev Event) error {
	if ev.App == "" {
		return ErrAppRequired
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, ev)
	s.evictLocked(time.Now())
	return nil
}

func (s *MemoryStore) EventsFor(_ context.Context, app string) ([]Event, error) {
	if app == "" {
		return nil, ErrAppRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	for _, ev := range s.events {
		if ev.App == app {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.events)
	s.dropBeforeLocked(cutoff)
	return int64(before - len(s.events)), nil
}

// evictLocked enforces retention and the event cap. Caller holds s.mu.
func (s *MemoryStore) evictLocked(now time.Time) {
	if s.retention > 0 {
		s.dropBeforeLocked(now.Add(-s.retention))
	}
	if s.maxEvents > 0 && len(s.events) > s.maxEvents {
		dropped := len(s.events) - s.maxEvents
		s.events = append(s.events[:0:0], s.events[dropped:]...)
		s.logger.Debug("analytics store at capacity", "dropped", dropped)
	}
}

func (s *MemoryStore) dropBeforeLocked(cutoff time.Time) {
	kept := s.events[:0]
	for _, ev := range s.events {
		if !ev.At.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	s.events = kept
}
