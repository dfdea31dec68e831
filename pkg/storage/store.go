package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/flowpulse/pkg/analytics"
	"github.com/cuemby/flowpulse/pkg/log"
	"github.com/cuemby/flowpulse/pkg/metrics"
	"github.com/cuemby/flowpulse/pkg/types"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxEvents  = 6000
	DefaultResetLevel = 2000

	seedWindow = 24 * time.Hour
)

// ErrInvalidLimits is returned when the trim thresholds are inconsistent
var ErrInvalidLimits = errors.New("reset level must be positive and below max events")

// Config holds the trim thresholds for the store
type Config struct {
	// MaxEvents is the ceiling that triggers a trim
	MaxEvents int
	// ResetLevel is the size the store is trimmed back to
	ResetLevel int
}

// Validate checks the thresholds
func (c Config) Validate() error {
	if c.ResetLevel <= 0 || c.MaxEvents <= c.ResetLevel {
		return fmt.Errorf("%w (max=%d, reset=%d)", ErrInvalidLimits, c.MaxEvents, c.ResetLevel)
	}
	return nil
}

// Seeder produces historical events for the initial backfill
type Seeder interface {
	GenerateAt(ts int64) types.Event
	Float64() float64
}

// Store is the bounded in-memory event history.
//
// Writes (Append, Seed) take the write lock and leave the cached overview
// consistent with the history before releasing it. Reads copy out under
// the read lock, or run inside View for a multi-value consistent read.
type Store struct {
	mu        sync.RWMutex
	cfg       Config
	events    []types.Event
	anomalies []types.Event
	overview  types.OverviewStats
	seq       uint64
	trims     int
	logger    zerolog.Logger
}

// New creates an empty store. Zero thresholds fall back to the defaults.
func New(cfg Config) (*Store, error) {
	if cfg.MaxEvents == 0 && cfg.ResetLevel == 0 {
		cfg = Config{MaxEvents: DefaultMaxEvents, ResetLevel: DefaultResetLevel}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		cfg:    cfg,
		logger: log.WithComponent("store"),
	}
	s.overview = analytics.ComputeOverview(nil, nil)
	return s, nil
}

// Config returns the store's trim thresholds
func (s *Store) Config() Config {
	return s.cfg
}

// Append adds an event to the end of the history and returns it with its
// assigned sequence number. Callers must append in non-decreasing timestamp
// order.
func (s *Store) Append(evt types.Event) types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	evt.Seq = s.seq

	s.events = append(s.events, evt)
	if evt.Type == types.EventAnomaly {
		s.anomalies = append(s.anomalies, evt)
	}

	if len(s.events) > s.cfg.MaxEvents {
		s.trim()
	}

	s.refresh()
	return evt
}

// trim cuts both lists back to their newest ResetLevel entries. Caller
// holds the write lock.
func (s *Store) trim() {
	before := len(s.events)
	s.events = keepNewest(s.events, s.cfg.ResetLevel)
	s.anomalies = keepNewest(s.anomalies, s.cfg.ResetLevel)
	s.trims++

	metrics.StoreTrims.Inc()
	s.logger.Debug().
		Int("before", before).
		Int("after", len(s.events)).
		Int("anomalies", len(s.anomalies)).
		Msg("Trimmed event history")
}

// keepNewest returns a fresh slice holding the last n items so the old
// backing array can be released
func keepNewest(list []types.Event, n int) []types.Event {
	if len(list) <= n {
		return list
	}
	out := make([]types.Event, n, n+n/2)
	copy(out, list[len(list)-n:])
	return out
}

// refresh recomputes the cached overview. Caller holds the write lock.
func (s *Store) refresh() {
	s.overview = analytics.ComputeOverview(s.events, s.anomalies)

	metrics.StoreEvents.Set(float64(len(s.events)))
	metrics.StoreAnomalies.Set(float64(len(s.anomalies)))
}

// Seed fills the store with count historical events spread over the 24
// hours before now, in chronological order.
func (s *Store) Seed(src Seeder, count int, now time.Time) {
	windowMillis := float64(seedWindow / time.Millisecond)
	batch := make([]types.Event, 0, count)
	for i := 0; i < count; i++ {
		ts := now.UnixMilli() - int64(src.Float64()*windowMillis)
		batch = append(batch, src.GenerateAt(ts))
	}

	// generation order is random, the history must not be
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].Timestamp < batch[j].Timestamp })

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, evt := range batch {
		s.seq++
		evt.Seq = s.seq
		s.events = append(s.events, evt)
		if evt.Type == types.EventAnomaly {
			s.anomalies = append(s.anomalies, evt)
		}
	}
	if len(s.events) > s.cfg.MaxEvents {
		s.trim()
	}
	s.refresh()

	s.logger.Info().
		Int("events", len(s.events)).
		Int("anomalies", len(s.anomalies)).
		Msg("Seeded event history")
}

// Events returns a copy of the history in chronological order
func (s *Store) Events() []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Event(nil), s.events...)
}

// Anomalies returns a copy of the anomaly sublist in chronological order
func (s *Store) Anomalies() []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Event(nil), s.anomalies...)
}

// Overview returns the cached overview stats
func (s *Store) Overview() types.OverviewStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overview
}

// Len returns the number of events held
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// LastSeq returns the sequence number of the newest appended event
func (s *Store) LastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Trims returns how many times the history has been trimmed
func (s *Store) Trims() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trims
}

// State is a read-only view of the store passed to View callbacks. Its
// slices alias the store's storage and must not be modified or retained.
type State struct {
	Events    []types.Event
	Anomalies []types.Event
	Overview  types.OverviewStats
	Seq       uint64
}

// View runs fn against one consistent state of the store under the read
// lock. fn must not call back into the store's write methods.
func (s *Store) View(fn func(State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fn(State{
		Events:    s.events,
		Anomalies: s.anomalies,
		Overview:  s.overview,
		Seq:       s.seq,
	})
}
