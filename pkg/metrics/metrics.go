package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Simulation metrics
	EventsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowpulse_events_generated_total",
			Help: "Total number of generated events by type",
		},
		[]string{"type"},
	)

	SimulationCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowpulse_simulation_cycles_total",
			Help: "Total number of completed simulation cycles",
		},
	)

	// Store metrics
	StoreEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowpulse_store_events",
			Help: "Number of events held in the history",
		},
	)

	StoreAnomalies = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowpulse_store_anomalies",
			Help: "Number of anomalies held in the history",
		},
	)

	StoreTrims = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowpulse_store_trims_total",
			Help: "Total number of history trims",
		},
	)

	// Broadcast metrics
	SubscribersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowpulse_subscribers_active",
			Help: "Number of registered stream subscribers",
		},
	)

	EventsBroadcast = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowpulse_events_broadcast_total",
			Help: "Total number of events handed to the broadcast hub",
		},
	)

	BroadcastFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowpulse_broadcast_failures_total",
			Help: "Total number of subscribers dropped during broadcast by reason",
		},
		[]string{"reason"},
	)

	BroadcastDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowpulse_broadcast_duration_seconds",
			Help:    "Time taken to fan out one event in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowpulse_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowpulse_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Dashboard metrics, sampled by the Collector
	OverviewSLACompliance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowpulse_overview_sla_compliance_percent",
			Help: "SLA compliance over the recent event window",
		},
	)

	OverviewCycleTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowpulse_overview_cycle_time_minutes",
			Help: "Mean cycle time of completed workflows",
		},
	)

	OverviewActiveAnomalies = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowpulse_overview_active_anomalies",
			Help: "Number of anomalies in the history",
		},
	)

	EventsLastDay = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowpulse_events_last_day",
			Help: "Number of events in the trailing 24 hours by type",
		},
		[]string{"type"},
	)

	ChaosFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowpulse_chaos_faults_total",
			Help: "Total number of injected faults by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(EventsGenerated)
	prometheus.MustRegister(SimulationCycles)
	prometheus.MustRegister(StoreEvents)
	prometheus.MustRegister(StoreAnomalies)
	prometheus.MustRegister(StoreTrims)
	prometheus.MustRegister(SubscribersActive)
	prometheus.MustRegister(EventsBroadcast)
	prometheus.MustRegister(BroadcastFailures)
	prometheus.MustRegister(BroadcastDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(OverviewSLACompliance)
	prometheus.MustRegister(OverviewCycleTime)
	prometheus.MustRegister(OverviewActiveAnomalies)
	prometheus.MustRegister(EventsLastDay)
	prometheus.MustRegister(ChaosFaults)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
