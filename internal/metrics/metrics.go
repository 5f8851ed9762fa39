// Package metrics holds the Prometheus collectors for the resolution
// pipeline. They are registered on the default registry and served from the
// health server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for RequestsTotal.
const (
	OutcomeSuccess        = "success"
	OutcomeNoMatch        = "no_match"
	OutcomeInput          = "invalid_input"
	OutcomeConfig         = "config_missing"
	OutcomeClassification = "classification_failed"
	OutcomeNetwork        = "network_unreachable"
	OutcomeError          = "error"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockline_requests_total",
			Help: "Total number of resolution requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockline_request_duration_seconds",
			Help:    "Duration of resolution requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	RequestsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockline_requests_active",
			Help: "Number of resolution requests in flight",
		},
	)

	LocationResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockline_location_resolutions_total",
			Help: "Location resolution attempts by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	StreamChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockline_stream_chunks_total",
			Help: "Total number of chunks read from retrieval response streams",
		},
	)

	AnswerSource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockline_answer_source_total",
			Help: "Which payload field produced the answer",
		},
		[]string{"source"},
	)

	RetrievalClientsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockline_retrieval_clients_open",
			Help: "Number of retrieval backend clients currently open",
		},
	)
)
