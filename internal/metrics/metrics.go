// Package metrics instruments the client: API traffic, cache behavior, and
// session events, on a private Prometheus registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the taskdeck client.
type Metrics struct {
	registry *prometheus.Registry

	// API traffic.
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	TransportErrorsTotal *prometheus.CounterVec

	// Store behavior.
	TeamCacheTotal  *prometheus.CounterVec
	StoreSyncsTotal *prometheus.CounterVec

	// Session events.
	ForcedLogoutsTotal prometheus.Counter

	// Client lifecycle.
	StartTime prometheus.Gauge
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdeck_api_requests_total",
			Help: "Total number of backend API requests.",
		}, []string{"method", "resource", "status_code"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskdeck_api_request_duration_seconds",
			Help:    "Backend API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "resource"}),

		TransportErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdeck_api_transport_errors_total",
			Help: "Total number of transport-level request failures by error type.",
		}, []string{"error_type"}),

		TeamCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdeck_team_cache_total",
			Help: "Team read-through cache lookups by outcome.",
		}, []string{"outcome"}),

		StoreSyncsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdeck_store_syncs_total",
			Help: "Store resynchronizations against the backend by outcome.",
		}, []string{"store", "outcome"}),

		ForcedLogoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskdeck_forced_logouts_total",
			Help: "Total number of sessions dropped after the backend rejected the token.",
		}),

		StartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskdeck_client_start_time_seconds",
			Help: "Unix timestamp when the client started.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.TransportErrorsTotal,
		m.TeamCacheTotal,
		m.StoreSyncsTotal,
		m.ForcedLogoutsTotal,
		m.StartTime,
	)

	m.StartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncRequest increments the API request counter.
func (m *Metrics) IncRequest(method, resource string, statusCode int) {
	m.RequestsTotal.WithLabelValues(method, resource, fmt.Sprintf("%d", statusCode)).Inc()
}

// ObserveRequestDuration records an API request duration.
func (m *Metrics) ObserveRequestDuration(method, resource string, seconds float64) {
	m.RequestDuration.WithLabelValues(method, resource).Observe(seconds)
}

// IncTransportError increments the transport error counter.
func (m *Metrics) IncTransportError(errorType string) {
	m.TransportErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncTeamCache increments the team cache counter for "hit" or "miss".
func (m *Metrics) IncTeamCache(outcome string) {
	m.TeamCacheTotal.WithLabelValues(outcome).Inc()
}

// IncStoreSync increments the store sync counter.
func (m *Metrics) IncStoreSync(store, outcome string) {
	m.StoreSyncsTotal.WithLabelValues(store, outcome).Inc()
}

// IncForcedLogout increments the forced logout counter.
func (m *Metrics) IncForcedLogout() {
	m.ForcedLogoutsTotal.Inc()
}
