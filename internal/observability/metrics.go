package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "incident_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the map service.
type Metrics struct {
	RefreshRunning  prometheus.Gauge
	Refreshes       *prometheus.CounterVec // labels: outcome={success,error}
	RefreshDuration prometheus.Histogram

	// Incident flow.
	IncidentsFetched prometheus.Counter
	IncidentsDropped prometheus.Counter
	HeatReplacements prometheus.Counter
	LiveMarkers      prometheus.Gauge

	// Upstream incident API.
	UpstreamRequests *prometheus.CounterVec // labels: outcome={success,error}
	UpstreamDuration prometheus.Histogram

	PopupCache         *prometheus.CounterVec // labels: result={hit,miss}
	SnapshotsPublished prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefreshRunning,
		m.Refreshes,
		m.RefreshDuration,
		m.IncidentsFetched,
		m.IncidentsDropped,
		m.HeatReplacements,
		m.LiveMarkers,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.PopupCache,
		m.SnapshotsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresher_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Map refreshes by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a fetch-render-publish cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		IncidentsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_fetched_total",
			Help:      "Incident records received from the incident API.",
		}),
		IncidentsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_dropped_total",
			Help:      "Incident records left off the map for missing or out-of-region coordinates.",
		}),
		HeatReplacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heat_layer_replacements_total",
			Help:      "Times a live heat layer was replaced by a new one.",
		}),
		LiveMarkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_markers",
			Help:      "Markers currently on the map.",
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Incident API page requests by outcome.",
		}, []string{"outcome"}),
		UpstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Incident API page request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		PopupCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "popup_cache_total",
			Help:      "Rendered popup cache lookups by result.",
		}, []string{"result"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Scene snapshots written to Kafka.",
		}),
	}
}
