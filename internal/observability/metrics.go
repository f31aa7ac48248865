package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stormslide"

// Metrics holds the Prometheus counters, histograms, and gauges for the map session.
type Metrics struct {
	// Upstream fetch metrics.
	FetchRequests  *prometheus.CounterVec   // labels: endpoint={radar,detections,weather}, outcome={success,error}
	FetchDebounced *prometheus.CounterVec   // labels: endpoint
	FetchDuration  *prometheus.HistogramVec // labels: endpoint
	DroppedItems   *prometheus.CounterVec   // labels: kind={frame,record}
	StaleResults   *prometheus.CounterVec   // labels: endpoint

	// Timeline and playback.
	TimelineFrames prometheus.Gauge
	Detections     prometheus.Gauge
	PlaybackCursor prometheus.Gauge
	ActiveSessions prometheus.Gauge

	// Rendering.
	Renders         prometheus.Counter
	RenderMutations *prometheus.CounterVec // labels: op
	RenderErrors    prometheus.Counter
	RenderResyncs   prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Upstream fetches by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		FetchDebounced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_debounced_total",
			Help:      "Refresh calls answered from the latest snapshot without a network call.",
		}, []string{"endpoint"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		DroppedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_items_total",
			Help:      "Frames and detection records dropped during normalization.",
		}, []string{"kind"}),
		StaleResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Fetch results discarded because a newer result was already applied.",
		}, []string{"endpoint"}),
		TimelineFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timeline_frames",
			Help:      "Number of playable radar frames in the current timeline.",
		}),
		Detections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "detections",
			Help:      "Number of classified detections currently drawn.",
		}),
		PlaybackCursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_cursor",
			Help:      "Current playback cursor index.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions created and not yet disposed.",
		}),
		Renders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Render passes applied to the map.",
		}),
		RenderMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_mutations_total",
			Help:      "Map mutations issued by operation.",
		}, []string{"op"}),
		RenderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Failed map applies.",
		}),
		RenderResyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_resyncs_total",
			Help:      "Clear-and-redraw passes following a failed apply.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when place-name enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchRequests,
		m.FetchDebounced,
		m.FetchDuration,
		m.DroppedItems,
		m.StaleResults,
		m.TimelineFrames,
		m.Detections,
		m.PlaybackCursor,
		m.ActiveSessions,
		m.Renders,
		m.RenderMutations,
		m.RenderErrors,
		m.RenderResyncs,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}

// NewMetrics creates and registers all session metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
