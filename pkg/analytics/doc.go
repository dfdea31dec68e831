/*
Package analytics derives the dashboard views from a history snapshot.

The functions here are pure: they take slices of events and return values,
never touching the store or the clock directly. Callers read the history
once and pass the same slices to every function they need.

# Overview

ComputeOverview reports SLA compliance over the last SLAWindow events, the
mean cycle time of every completed event, the anomaly count and the total
number of events. Percentages and means round half up.

# Volume

ComputeVolumePerHour returns contiguous one-hour buckets ending at the hour
containing now. Bucket boundaries are computed in absolute time, so a
repeated hour at the end of daylight saving produces two distinct buckets
that share a clock label.

# Heatmap

ComputeHeatmapCells groups anomalies by local hour of day and severity.
It is not windowed; anomalies from different days at the same hour share a
cell.
*/
package analytics
