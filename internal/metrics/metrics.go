// Package metrics holds the Prometheus collectors for the relay.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels
const (
	OutcomeOK            = "ok"
	OutcomeInvalid       = "invalid"
	OutcomeNotConfigured = "not_configured"
	OutcomeUpstream      = "upstream_error"
	OutcomeAborted       = "aborted"
	OutcomeError         = "error"
)

var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filerelay_uploads_total",
			Help: "Upload relay requests by outcome",
		},
		[]string{"outcome"},
	)
	StreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filerelay_streams_total",
			Help: "Stream relay requests by outcome",
		},
		[]string{"outcome"},
	)
	StreamedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filerelay_streamed_bytes_total",
			Help: "Bytes piped from Telegram to clients",
		},
	)
	providerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filerelay_provider_call_duration_seconds",
			Help:    "Time until Telegram answered, by Bot API method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// ObserveProviderCall records how long a Bot API call took to return headers.
func ObserveProviderCall(method string, start time.Time) {
	providerCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
