package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/cuemby/flowpulse/pkg/types"
)

const (
	// SLAWindow is how many of the most recent events feed SLA compliance
	SLAWindow = 200

	// DefaultHoursBack is the default rolling window for volume buckets
	DefaultHoursBack = 24
)

// roundHalfUp rounds non-negative values to the nearest integer, halves up
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// ComputeOverview derives the summary stats from a history snapshot.
//
// SLA compliance is windowed over the last SLAWindow events while
// activeAnomalies counts the whole anomalies list.
func ComputeOverview(events, anomalies []types.Event) types.OverviewStats {
	window := events
	if len(window) > SLAWindow {
		window = window[len(window)-SLAWindow:]
	}

	sla := 100
	if len(window) > 0 {
		nonAnomalies := 0
		for _, e := range window {
			if e.Type != types.EventAnomaly {
				nonAnomalies++
			}
		}
		sla = roundHalfUp(float64(nonAnomalies) / float64(len(window)) * 100)
	}

	var sum, completed int
	for _, e := range events {
		if e.Type != types.EventCompleted {
			continue
		}
		if ct, ok := e.CycleTimeValue(); ok {
			sum += ct
			completed++
		}
	}

	cycleTime := 0
	if completed > 0 {
		cycleTime = roundHalfUp(float64(sum) / float64(completed))
	}

	return types.OverviewStats{
		SLACompliance:       sla,
		CycleTime:           cycleTime,
		ActiveAnomalies:     len(anomalies),
		TotalWorkflowsToday: len(events),
	}
}

// hourStart returns the start of the wall-clock hour containing t in loc.
// It subtracts the elapsed minutes rather than calling time.Date, which may
// pick the wrong offset inside a repeated DST hour.
func hourStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	elapsed := time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return t.Add(-elapsed)
}

// ComputeVolumePerHour buckets events into hoursBack contiguous one-hour
// windows ending at the hour containing now, oldest first. Events outside
// every window are dropped.
func ComputeVolumePerHour(events []types.Event, hoursBack int, now time.Time, loc *time.Location) []types.VolumeBucket {
	if hoursBack <= 0 {
		hoursBack = DefaultHoursBack
	}
	if loc == nil {
		loc = time.Local
	}

	buckets := make([]types.VolumeBucket, hoursBack)
	starts := make([]int64, hoursBack)
	// step back in absolute time from the current hour; rebuilding each
	// start from wall-clock fields repeats an hour when DST ends
	base := hourStart(now, loc)
	for i := 0; i < hoursBack; i++ {
		start := base.Add(-time.Duration(hoursBack-1-i) * time.Hour)
		starts[i] = start.UnixMilli()
		buckets[i].Hour = start.In(loc).Hour()
	}

	const hourMillis = int64(time.Hour / time.Millisecond)
	for _, e := range events {
		idx := sort.Search(hoursBack, func(i int) bool { return starts[i]+hourMillis > e.Timestamp })
		if idx == hoursBack || e.Timestamp < starts[idx] {
			continue
		}
		switch e.Type {
		case types.EventCompleted:
			buckets[idx].Completed++
		case types.EventPending:
			buckets[idx].Pending++
		case types.EventAnomaly:
			buckets[idx].Anomaly++
		}
	}

	return buckets
}

type cellKey struct {
	hour     int
	severity int
}

// ComputeHeatmapCells groups anomalies by local hour-of-day and severity.
// Unlike ComputeVolumePerHour this is not a rolling window: anomalies from
// different days at the same clock hour share a cell. Cells are returned
// sorted by hour then severity.
func ComputeHeatmapCells(anomalies []types.Event, loc *time.Location) []types.HeatmapCell {
	if loc == nil {
		loc = time.Local
	}

	counts := make(map[cellKey]int)
	for _, a := range anomalies {
		sev, ok := a.SeverityValue()
		if !ok {
			sev = types.MinSeverity
		}
		counts[cellKey{hour: a.Time().In(loc).Hour(), severity: sev}]++
	}

	cells := make([]types.HeatmapCell, 0, len(counts))
	for k, n := range counts {
		cells = append(cells, types.HeatmapCell{Hour: k.hour, Severity: k.severity, Count: n})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Hour != cells[j].Hour {
			return cells[i].Hour < cells[j].Hour
		}
		return cells[i].Severity < cells[j].Severity
	})

	return cells
}
