/*
Package metrics provides Prometheus metrics and component health for
flowpulse.

All collectors are package-level variables registered with the default
registry at init and exposed by Handler:

	flowpulse_events_generated_total{type}      events produced by the simulation
	flowpulse_simulation_cycles_total           simulation cycles run
	flowpulse_store_events                      events held in the history
	flowpulse_store_anomalies                   anomalies held in the history
	flowpulse_store_trims_total                 hysteresis trims
	flowpulse_subscribers_active                registered stream subscribers
	flowpulse_events_broadcast_total            events handed to the hub
	flowpulse_broadcast_failures_total{reason}  subscribers dropped (closed, overflow, write_error)
	flowpulse_broadcast_duration_seconds        fan-out latency per event
	flowpulse_api_requests_total{route,status}  HTTP requests
	flowpulse_api_request_duration_seconds      HTTP latency by route
	flowpulse_overview_*                        overview stats sampled by Collector
	flowpulse_events_last_day{type}             trailing 24h volume sampled by Collector
	flowpulse_chaos_faults_total{kind}          injected faults

Use Timer to observe a latency:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BroadcastDuration)

# Health

Components report their state with SetComponent. HealthHandler reports
unhealthy when any registered component is down; ReadyHandler additionally
waits for every critical component (store, simulation, api) to register as
healthy. LivenessHandler always answers 200.
*/
package metrics
