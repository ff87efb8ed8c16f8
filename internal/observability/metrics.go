// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cluster metrics
	SpotsParsed       prometheus.Counter
	SpotParseErrors   prometheus.Counter
	ClusterConnected  prometheus.Gauge
	ClusterReconnects prometheus.Counter

	// Enrichment metrics
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	CacheSize     prometheus.Gauge
	LookupErrors  prometheus.Counter
	LookupLatency prometheus.Histogram

	// Radio metrics
	RadioConnected  prometheus.Gauge
	RadioReconnects prometheus.Counter
	CommandsSent    prometheus.Counter
	CommandTimeouts prometheus.Counter
	SpotsPushed     prometheus.Counter
	QsyTimeouts     prometheus.Counter

	// Pipeline metrics
	SpotsProcessed  prometheus.Counter
	ArchiveErrors   *prometheus.CounterVec
	SpotLatency     prometheus.Histogram
	EventsBroadcast prometheus.Counter
	GatewayClients  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "flexdx_bridge"
	}

	return &Metrics{
		SpotsParsed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cluster",
			Name:      "spots_parsed_total",
			Help:      "Total number of spot announcements parsed",
		}),
		SpotParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cluster",
			Name:      "spot_parse_errors_total",
			Help:      "Total number of announcement lines dropped as malformed",
		}),
		ClusterConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cluster",
			Name:      "connected",
			Help:      "Whether a cluster session is logged in (1) or not (0)",
		}),
		ClusterReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cluster",
			Name:      "reconnects_total",
			Help:      "Total number of cluster session losses",
		}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "cache_hits_total",
			Help:      "Total number of enrichment cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "cache_misses_total",
			Help:      "Total number of enrichment cache misses",
		}),
		CacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "cache_size",
			Help:      "Current number of cached enrichment records",
		}),
		LookupErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "lookup_errors_total",
			Help:      "Total number of failed enrichment lookups",
		}),
		LookupLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "lookup_duration_seconds",
			Help:      "Enrichment lookup latency",
			Buckets:   prometheus.DefBuckets,
		}),

		RadioConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "connected",
			Help:      "Whether a radio session is established (1) or not (0)",
		}),
		RadioReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "reconnects_total",
			Help:      "Total number of radio session losses",
		}),
		CommandsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "commands_sent_total",
			Help:      "Total number of commands sent to the radio",
		}),
		CommandTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "command_timeouts_total",
			Help:      "Total number of commands whose reply deadline expired",
		}),
		SpotsPushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "spots_pushed_total",
			Help:      "Total number of spots pushed to the radio display",
		}),
		QsyTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "qsy_timeouts_total",
			Help:      "Total number of tune requests resolved by the deadline",
		}),

		SpotsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "spots_processed_total",
			Help:      "Total number of spots run through the pipeline",
		}),
		ArchiveErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "archive_errors_total",
			Help:      "Total number of archive write failures by store",
		}, []string{"store"}),
		SpotLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "spot_duration_seconds",
			Help:      "End-to-end spot processing latency",
			Buckets:   prometheus.DefBuckets,
		}),
		EventsBroadcast: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "events_broadcast_total",
			Help:      "Total number of events fanned out to GUI clients",
		}),
		GatewayClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "clients",
			Help:      "Current number of connected GUI clients",
		}),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSpotParsed increments the parsed-spot counter.
func RecordSpotParsed() {
	DefaultMetrics.SpotsParsed.Inc()
}

// RecordSpotParseError increments the dropped-line counter.
func RecordSpotParseError() {
	DefaultMetrics.SpotParseErrors.Inc()
}

// SetClusterConnected records the cluster session state.
func SetClusterConnected(connected bool) {
	if connected {
		DefaultMetrics.ClusterConnected.Set(1)
		return
	}
	DefaultMetrics.ClusterConnected.Set(0)
	DefaultMetrics.ClusterReconnects.Inc()
}

// RecordCacheLookup updates the hit/miss counters and cache size gauge.
func RecordCacheLookup(hit bool, size int) {
	if hit {
		DefaultMetrics.CacheHits.Inc()
	} else {
		DefaultMetrics.CacheMisses.Inc()
	}
	DefaultMetrics.CacheSize.Set(float64(size))
}

// RecordLookup observes one enrichment lookup.
func RecordLookup(seconds float64, err error) {
	DefaultMetrics.LookupLatency.Observe(seconds)
	if err != nil {
		DefaultMetrics.LookupErrors.Inc()
	}
}

// SetRadioConnected records the radio session state.
func SetRadioConnected(connected bool) {
	if connected {
		DefaultMetrics.RadioConnected.Set(1)
		return
	}
	DefaultMetrics.RadioConnected.Set(0)
	DefaultMetrics.RadioReconnects.Inc()
}

// RecordCommand counts one sent command and, when timedOut, its expiry.
func RecordCommand(timedOut bool) {
	DefaultMetrics.CommandsSent.Inc()
	if timedOut {
		DefaultMetrics.CommandTimeouts.Inc()
	}
}

// RecordSpotPushed increments the pushed-spot counter.
func RecordSpotPushed() {
	DefaultMetrics.SpotsPushed.Inc()
}

// RecordQsyTimeout increments the forced-reconciliation counter.
func RecordQsyTimeout() {
	DefaultMetrics.QsyTimeouts.Inc()
}

// RecordSpotProcessed observes one spot's trip through the pipeline.
func RecordSpotProcessed(seconds float64) {
	DefaultMetrics.SpotsProcessed.Inc()
	DefaultMetrics.SpotLatency.Observe(seconds)
}

// RecordArchiveError counts a failed archive write for a store.
func RecordArchiveError(store string) {
	DefaultMetrics.ArchiveErrors.WithLabelValues(store).Inc()
}

// RecordBroadcast counts one event fanned out to GUI clients.
func RecordBroadcast() {
	DefaultMetrics.EventsBroadcast.Inc()
}

// SetGatewayClients records the connected GUI client count.
func SetGatewayClients(n int) {
	DefaultMetrics.GatewayClients.Set(float64(n))
}
