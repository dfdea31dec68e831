/*
Package types defines the data model shared by every FlowPulse component.

An Event is immutable once created. Its payload is a tagged union over
EventType:

	completed  -> CycleTime (minutes, 10..130)
	pending    -> no payload
	anomaly    -> Severity (1..5)

Aggregate views (OverviewStats, VolumeBucket, HeatmapCell, Snapshot) carry
JSON tags matching the dashboard wire format.
*/
package types
