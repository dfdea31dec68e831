package query

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/flowpulse/pkg/analytics"
	"github.com/cuemby/flowpulse/pkg/events"
	"github.com/cuemby/flowpulse/pkg/storage"
	"github.com/cuemby/flowpulse/pkg/types"
)

const (
	DefaultTimelineHours = 24
	DefaultAnomalyLimit  = 200
)

// Options configures a Facade
type Options struct {
	// Now overrides the clock used for windowed views
	Now func() time.Time
	// Location is used for hour-of-day bucketing, defaulting to time.Local
	Location *time.Location
}

// Facade serves read views of the store and onboards stream subscribers
type Facade struct {
	store *storage.Store
	hub   *events.Hub
	now   func() time.Time
	loc   *time.Location
}

// New creates a new query facade
func New(store *storage.Store, hub *events.Hub, opts Options) *Facade {
	f := &Facade{
		store: store,
		hub:   hub,
		now:   opts.Now,
		loc:   opts.Location,
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.loc == nil {
		f.loc = time.Local
	}
	return f
}

// Overview returns the cached overview stats
func (f *Facade) Overview() types.OverviewStats {
	return f.store.Overview()
}

// Timeline returns the events from the trailing window, oldest first
func (f *Facade) Timeline(windowHours int) []types.Event {
	if windowHours <= 0 {
		windowHours = DefaultTimelineHours
	}

	var out []types.Event
	now := f.now()
	f.store.View(func(st storage.State) {
		out = timeline(st.Events, windowHours, now)
	})
	return out
}

// timeline copies the events at or after now - windowHours
func timeline(history []types.Event, windowHours int, now time.Time) []types.Event {
	cutoff := now.Add(-time.Duration(windowHours) * time.Hour).UnixMilli()

	// history is chronological, so skip to the first event inside the window
	start := len(history)
	for i, e := range history {
		if e.Timestamp >= cutoff {
			start = i
			break
		}
	}
	return append(make([]types.Event, 0, len(history)-start), history[start:]...)
}

// Anomalies returns the newest limit anomalies, oldest first
func (f *Facade) Anomalies(limit int) []types.Event {
	if limit <= 0 {
		limit = DefaultAnomalyLimit
	}

	var out []types.Event
	f.store.View(func(st storage.State) {
		list := st.Anomalies
		if len(list) > limit {
			list = list[len(list)-limit:]
		}
		out = append(make([]types.Event, 0, len(list)), list...)
	})
	return out
}

// Volume returns per-hour buckets for the trailing hoursBack hours
func (f *Facade) Volume(hoursBack int) []types.VolumeBucket {
	var out []types.VolumeBucket
	now := f.now()
	f.store.View(func(st storage.State) {
		out = analytics.ComputeVolumePerHour(st.Events, hoursBack, now, f.loc)
	})
	return out
}

// Heatmap returns the anomaly (hour, severity) cells
func (f *Facade) Heatmap() []types.HeatmapCell {
	var out []types.HeatmapCell
	f.store.View(func(st storage.State) {
		out = analytics.ComputeHeatmapCells(st.Anomalies, f.loc)
	})
	return out
}

// Snapshot returns overview, 24h timeline and 24h volume computed from the
// same store state
func (f *Facade) Snapshot() types.Snapshot {
	var snap types.Snapshot
	now := f.now()
	f.store.View(func(st storage.State) {
		snap = types.Snapshot{
			Overview: st.Overview,
			Events:   timeline(st.Events, DefaultTimelineHours, now),
			Volume:   analytics.ComputeVolumePerHour(st.Events, analytics.DefaultHoursBack, now, f.loc),
			Seq:      st.Seq,
		}
	})
	return snap
}

// OnSubscribe registers ch with the hub and writes a snapshot backfill
// before the channel receives any live event. The returned function
// unsubscribes and may be called more than once.
func (f *Facade) OnSubscribe(ch events.Channel) (func(), error) {
	sub := f.hub.SubscribePending(ch)

	snap := f.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := sub.Send(events.Frame{Kind: events.FrameSnapshot, Data: data}); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("failed to send backfill: %w", err)
	}
	if err := sub.Activate(snap.Seq); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}

	return sub.Unsubscribe, nil
}

// Subscribers returns the number of registered stream subscribers
func (f *Facade) Subscribers() int {
	return f.hub.Count()
}
