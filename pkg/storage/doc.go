/*
Package storage holds the in-memory event history behind the dashboard.

The store keeps every event in chronological order together with the
anomaly sublist and a cached OverviewStats that is recomputed on every
write. Growth is bounded by a two-threshold trim:

	len(events) > MaxEvents   ->   keep newest ResetLevel events
	                               keep newest ResetLevel anomalies

Trimming only when the ceiling is crossed avoids paying for a copy on
every insert.

# Concurrency

The store has a single writer (the simulation loop) and many readers.
Append and Seed hold the write lock for the whole mutation, trim and
metrics refresh, so readers never see a half-applied write. View gives
readers a consistent multi-value read for building snapshots.
*/
package storage
