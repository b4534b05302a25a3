// Package metrics defines the Prometheus collectors exported by the reset mailer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "resetmailer"

// Dispatch outcomes
const (
	OutcomeSimulated = "simulated"
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
)

var (
	// DispatchTotal counts reset notifications by outcome.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of password reset notifications by outcome",
		},
		[]string{"outcome"},
	)

	// SendDuration observes live transport sends, successful or not.
	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Latency of live mail transport sends",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	// TransportState is 1 for the state the transport settled in at startup, 0 otherwise.
	TransportState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transport_state",
			Help:      "Mail transport state decided at startup",
		},
		[]string{"state"},
	)

	// ResetRequestsTotal counts forgot-password requests handled over HTTP.
	ResetRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reset_requests_total",
			Help:      "Total number of forgot-password requests by status",
		},
		[]string{"status"},
	)
)

// SetTransportState marks current as the active transport state among all.
func SetTransportState(current string, all []string) {
	for _, s := range all {
		value := 0.0
		if s == current {
			value = 1
		}
		TransportState.WithLabelValues(s).Set(value)
	}
}

// Handler returns an http.Handler exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
