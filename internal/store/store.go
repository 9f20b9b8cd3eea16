// Package store keeps the rolling alarm history in memory and mirrors it to a
// JSON snapshot file after every change.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/TimUx/alarm-monitor/internal/domain"
	"github.com/TimUx/alarm-monitor/internal/observability"
)

// DefaultCapacity is the number of records retained when no capacity is configured.
const DefaultCapacity = 100

// Store is the thread-safe alarm history. Records are kept newest first and
// at most one retained record carries a given incident number.
type Store struct {
	mu       sync.Mutex
	history  []domain.AlarmRecord
	index    map[string]int // incident number -> retained records carrying it
	path     string
	capacity int
	writeErr error

	clock   clockwork.Clock
	newID   func() string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option customizes a Store.
type Option func(*Store)

// WithClock sets the time source used for received_at.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator replaces the record ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New creates a Store backed by the snapshot at path and loads any existing
// history from it. An empty path keeps the history in memory only. A missing
// or unreadable snapshot starts an empty history; the problem is logged.
func New(path string, capacity int, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		index:    make(map[string]int),
		path:     path,
		capacity: capacity,
		clock:    clockwork.NewRealClock(),
		newID:    uuid.NewString,
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(s)
	}

	if path != "" {
		s.load()
	}
	s.metrics.HistorySize.Set(float64(len(s.history)))
	return s
}

// Record commits rec as the newest alarm. It fails with ErrDuplicateIncident
// when a retained record already carries the incident number. ReceivedAt is
// stamped from the store clock unless already set, and an ID is assigned
// when missing. The returned copy reflects what was stored.
//
// A failed snapshot write does not fail Record: memory stays authoritative
// and the next successful write catches the file up.
func (s *Store) Record(rec domain.AlarmRecord) (domain.AlarmRecord, error) {
	rec = rec.Clone()
	rec.Alarm.IncidentNumber = strings.TrimSpace(rec.Alarm.IncidentNumber)

	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Alarm.IncidentNumber
	if key != "" && s.index[key] > 0 {
		return domain.AlarmRecord{}, fmt.Errorf("incident %q: %w", key, domain.ErrDuplicateIncident)
	}

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = s.clock.Now().UTC()
	} else {
		rec.ReceivedAt = rec.ReceivedAt.UTC()
	}
	if rec.ID == "" {
		rec.ID = s.newID()
	}

	s.history = append(s.history, domain.AlarmRecord{})
	copy(s.history[1:], s.history)
	s.history[0] = rec
	s.addIndex(key)
	s.evict()

	s.persist()
	s.metrics.HistorySize.Set(float64(len(s.history)))

	return rec.Clone(), nil
}

// Latest returns the newest record.
func (s *Store) Latest() (domain.AlarmRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return domain.AlarmRecord{}, false
	}
	return s.history[0].Clone(), true
}

// History returns up to limit records, newest first. A limit of zero or less
// returns the whole history.
func (s *Store) History(limit int) []domain.AlarmRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.AlarmRecord, n)
	for i := range out {
		out[i] = s.history[i].Clone()
	}
	return out
}

// HasIncidentNumber reports whether a retained record carries incidentNumber.
func (s *Store) HasIncidentNumber(incidentNumber string) (bool, error) {
	key := strings.TrimSpace(incidentNumber)
	if key == "" {
		return false, fmt.Errorf("incident number is empty: %w", domain.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index[key] > 0, nil
}

// CheckReadiness reports the most recent snapshot write failure, if any.
func (s *Store) CheckReadiness(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return fmt.Errorf("alarm history not persisted: %w", s.writeErr)
	}
	return nil
}

// Len returns the number of retained records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

func (s *Store) addIndex(key string) {
	if key != "" {
		s.index[key]++
	}
}

func (s *Store) removeIndex(key string) {
	if key == "" {
		return
	}
	if s.index[key] <= 1 {
		delete(s.index, key)
		return
	}
	s.index[key]--
}

// evict drops the oldest records beyond capacity. Callers hold s.mu.
func (s *Store) evict() {
	for len(s.history) > s.capacity {
		last := len(s.history) - 1
		s.removeIndex(s.history[last].Alarm.IncidentNumber)
		s.history[last] = domain.AlarmRecord{}
		s.history = s.history[:last]
	}
}
