package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidEvent is returned when an event's payload does not match its type
var ErrInvalidEvent = errors.New("invalid event")

// EventType is the lifecycle outcome carried by an event
type EventType string

const (
	EventCompleted EventType = "completed"
	EventPending   EventType = "pending"
	EventAnomaly   EventType = "anomaly"
)

// Valid reports whether t is one of the known event types
func (t EventType) Valid() bool {
	switch t {
	case EventCompleted, EventPending, EventAnomaly:
		return true
	}
	return false
}

const (
	MinSeverity = 1
	MaxSeverity = 5

	MinCycleTime = 10  // minutes
	MaxCycleTime = 130 // minutes
)

// Event is one synthetic workflow occurrence.
//
// The payload is keyed by Type: Severity is set only for anomalies and
// CycleTime only for completed events. Use the New* constructors to build
// events; they are the only way to get a valid payload combination.
type Event struct {
	ID        string    `json:"id"`
	Timestamp int64     `json:"timestamp"` // ms since epoch
	Type      EventType `json:"type"`
	Severity  *int      `json:"severity,omitempty"`
	CycleTime *int      `json:"cycleTime,omitempty"`

	// Seq is assigned by the store on append and orders live delivery
	// against backfill snapshots. It is never serialized.
	Seq uint64 `json:"-"`
}

// NewCompleted creates a completed event with the given cycle time in minutes
func NewCompleted(id string, ts int64, cycleTime int) Event {
	return Event{ID: id, Timestamp: ts, Type: EventCompleted, CycleTime: &cycleTime}
}

// NewPending creates a pending event
func NewPending(id string, ts int64) Event {
	return Event{ID: id, Timestamp: ts, Type: EventPending}
}

// NewAnomaly creates an anomaly event with the given severity
func NewAnomaly(id string, ts int64, severity int) Event {
	return Event{ID: id, Timestamp: ts, Type: EventAnomaly, Severity: &severity}
}

// SeverityValue returns the anomaly severity, if any
func (e Event) SeverityValue() (int, bool) {
	if e.Severity == nil {
		return 0, false
	}
	return *e.Severity, true
}

// CycleTimeValue returns the completion cycle time, if any
func (e Event) CycleTimeValue() (int, bool) {
	if e.CycleTime == nil {
		return 0, false
	}
	return *e.CycleTime, true
}

// Time returns the event timestamp as a time.Time
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Validate checks that the payload fields match the event type
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}

	switch e.Type {
	case EventCompleted:
		if e.Severity != nil {
			return fmt.Errorf("%w: completed event %s carries severity", ErrInvalidEvent, e.ID)
		}
		if e.CycleTime == nil {
			return fmt.Errorf("%w: completed event %s has no cycle time", ErrInvalidEvent, e.ID)
		}
	case EventPending:
		if e.Severity != nil || e.CycleTime != nil {
			return fmt.Errorf("%w: pending event %s carries a payload", ErrInvalidEvent, e.ID)
		}
	case EventAnomaly:
		if e.CycleTime != nil {
			return fmt.Errorf("%w: anomaly event %s carries cycle time", ErrInvalidEvent, e.ID)
		}
		if e.Severity == nil {
			return fmt.Errorf("%w: anomaly event %s has no severity", ErrInvalidEvent, e.ID)
		}
		if *e.Severity < MinSeverity || *e.Severity > MaxSeverity {
			return fmt.Errorf("%w: severity %d out of range", ErrInvalidEvent, *e.Severity)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}

	return nil
}

// OverviewStats is the four-field dashboard summary
type OverviewStats struct {
	SLACompliance       int `json:"slaCompliance"`
	CycleTime           int `json:"cycleTime"`
	ActiveAnomalies     int `json:"activeAnomalies"`
	TotalWorkflowsToday int `json:"totalWorkflowsToday"`
}

// VolumeBucket counts events per type for one hour window
type VolumeBucket struct {
	Hour      int `json:"hour"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Anomaly   int `json:"anomaly"`
}

// Total returns the number of events counted in the bucket
func (b VolumeBucket) Total() int {
	return b.Completed + b.Pending + b.Anomaly
}

// HeatmapCell counts anomalies for one (hour-of-day, severity) pair
type HeatmapCell struct {
	Hour     int `json:"hour"`
	Severity int `json:"severity"`
	Count    int `json:"count"`
}

// Snapshot is a consistent view of overview, timeline and volume taken at
// one moment
type Snapshot struct {
	Overview OverviewStats  `json:"overview"`
	Events   []Event        `json:"events"`
	Volume   []VolumeBucket `json:"volume"`

	// Seq is the store sequence the snapshot was taken at
	Seq uint64 `json:"-"`
}
