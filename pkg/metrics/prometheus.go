// Package metrics provides Prometheus metrics for the Rediguard pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace string
	registry  prometheus.Registerer

	// Pipeline metrics
	eventsProcessed   prometheus.Counter
	anomaliesDetected prometheus.Counter
	alertsCreated     prometheus.Counter
	maliciousIPHits   prometheus.Counter
	partialWrites     *prometheus.CounterVec
	pipelineLatency   prometheus.Histogram
	scoringLatency    prometheus.Histogram

	// Store metrics
	storeOpLatency *prometheus.HistogramVec
	storeOpErrors  *prometheus.CounterVec
	capabilityMode *prometheus.GaugeVec

	// Stream metrics
	streamAppends    prometheus.Counter
	streamDeliveries prometheus.Counter
	streamAcks       prometheus.Counter
	streamReclaims   prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "rediguard",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.eventsProcessed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_processed_total",
		Help:      "Login events that completed the analysis pipeline.",
	})
	m.anomaliesDetected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "anomalies_detected_total",
		Help:      "Events whose anomaly score exceeded the threshold.",
	})
	m.alertsCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "alerts_created_total",
		Help:      "Security alerts persisted by the pipeline.",
	})
	m.maliciousIPHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "malicious_ip_hits_total",
		Help:      "Events whose source address matched the reputation set.",
	})
	m.partialWrites = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "partial_write_failures_total",
		Help:      "Post-decision writes that failed and were masked.",
	}, []string{"store"})
	m.pipelineLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "pipeline_latency_ms",
		Help:      "End-to-end latency of processing one event in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
	m.scoringLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "scoring_latency_ms",
		Help:      "Anomaly scoring latency in milliseconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100},
	})

	m.storeOpLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "store_op_latency_ms",
		Help:      "Latency of store operations in milliseconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
	}, []string{"store", "op"})
	m.storeOpErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "store_op_errors_total",
		Help:      "Store operations that returned an error.",
	}, []string{"store", "op"})
	m.capabilityMode = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "capability_indexed",
		Help:      "1 when the indexed backend is active for a capability, 0 when the fallback is.",
	}, []string{"capability"})

	m.streamAppends = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "stream_appends_total",
		Help:      "Entries appended to the login event stream.",
	})
	m.streamDeliveries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "stream_deliveries_total",
		Help:      "Entries delivered to stream consumers, including redeliveries.",
	})
	m.streamAcks = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "stream_acks_total",
		Help:      "Entries acknowledged by stream consumers.",
	})
	m.streamReclaims = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "stream_reclaims_total",
		Help:      "Pending entries reclaimed after their consumer went idle.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request duration in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"endpoint", "method", "status"})

	return m
}

// GetRegistry exposes the private registry for the metrics endpoint.
func GetRegistry() *prometheus.Registry { return customRegistry }

// Package-level recording helpers, cheap to call from hot paths.

func RecordEventProcessed()   { globalManager.eventsProcessed.Inc() }
func RecordAnomalyDetected()  { globalManager.anomaliesDetected.Inc() }
func RecordAlertCreated()     { globalManager.alertsCreated.Inc() }
func RecordMaliciousIPHit()   { globalManager.maliciousIPHits.Inc() }
func RecordStreamAppend()     { globalManager.streamAppends.Inc() }
func RecordStreamDelivery()   { globalManager.streamDeliveries.Inc() }
func RecordStreamAck()        { globalManager.streamAcks.Inc() }
func RecordStreamReclaim()    { globalManager.streamReclaims.Inc() }

func RecordPartialWrite(store string) {
	globalManager.partialWrites.WithLabelValues(store).Inc()
}

func RecordPipelineLatency(ms float64) { globalManager.pipelineLatency.Observe(ms) }
func RecordScoringLatency(ms float64)  { globalManager.scoringLatency.Observe(ms) }

func RecordStoreOp(store, op string, ms float64) {
	globalManager.storeOpLatency.WithLabelValues(store, op).Observe(ms)
}

func RecordStoreError(store, op string) {
	globalManager.storeOpErrors.WithLabelValues(store, op).Inc()
}

// SetCapabilityIndexed reports which backend a capability resolved to.
func SetCapabilityIndexed(capability string, indexed bool) {
	v := 0.0
	if indexed {
		v = 1.0
	}
	globalManager.capabilityMode.WithLabelValues(capability).Set(v)
}

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}
