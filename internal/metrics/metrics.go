// Package metrics exposes Prometheus metrics for the market indexer
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "market_indexer"

// Indexing loop metrics
var (
	// RangesTotal counts block ranges by outcome (indexed, failed, no_work)
	RangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranges_total",
			Help:      "Block ranges processed by outcome",
		},
		[]string{"outcome"},
	)

	// RangeDuration observes how long a block range takes to fetch and project
	RangeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "range_duration_seconds",
			Help:      "Time to fetch and project one block range",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// LastIndexedBlock is the checkpoint after the most recent completed range
	LastIndexedBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_indexed_block",
			Help:      "Checkpoint block number",
		},
	)

	// ChainHead is the most recently observed chain height
	ChainHead = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_head_block",
			Help:      "Most recently observed chain height",
		},
	)
)

// Event metrics
var (
	// EventsTotal counts processed events by kind and result (applied, ignored, duplicate, malformed, quarantined)
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Marketplace events processed by kind and result",
		},
		[]string{"event", "result"},
	)

	// MetadataFetchTotal counts metadata resolutions by result (ok, failed)
	MetadataFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_fetch_total",
			Help:      "Off-chain metadata resolutions by result",
		},
		[]string{"result"},
	)

	// NotificationsTotal counts change notifications by result (ok, failed)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Change notifications published by result",
		},
		[]string{"result"},
	)
)

// Status server metrics
var (
	// HTTPRequestsTotal counts status server requests by route template
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Status server requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes status server latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Status server request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordRange records the outcome of one loop iteration
func RecordRange(outcome string, durationSeconds float64) {
	RangesTotal.WithLabelValues(outcome).Inc()
	if outcome != "no_work" {
		RangeDuration.Observe(durationSeconds)
	}
}

// RecordEvent records the result of processing one event
func RecordEvent(event, result string) {
	EventsTotal.WithLabelValues(event, result).Inc()
}

// RecordMetadataFetch records the result of one metadata resolution
func RecordMetadataFetch(ok bool) {
	MetadataFetchTotal.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordNotification records the result of one published notification
func RecordNotification(ok bool) {
	NotificationsTotal.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordHTTPRequest records one status server request
func RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
