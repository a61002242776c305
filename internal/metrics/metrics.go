// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts protocol requests by type and outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionpool_requests_total",
			Help: "Protocol requests by request type and outcome",
		},
		[]string{"type", "status"},
	)

	// RequestDuration tracks end-to-end request latency, including the
	// reconciliation sweeps and the store transaction.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sessionpool_request_duration_seconds",
			Help:    "Request duration in seconds by request type",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"type"},
	)

	// LeasesGranted counts granted leases by allocation mode.
	LeasesGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionpool_leases_granted_total",
			Help: "Sessions leased to experiments by allocation mode (single/batch)",
		},
		[]string{"mode"},
	)

	// SessionsReleased counts explicit unlocks by experiments.
	SessionsReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionpool_sessions_released_total",
			Help: "Sessions released explicitly through unlock requests",
		},
	)

	// SessionsReclaimed counts forced unlocks by the reconciler, by
	// reason (ttl/freshness).
	SessionsReclaimed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionpool_sessions_reclaimed_total",
			Help: "Sessions forcibly unlocked by the reconciler, by reason",
		},
		[]string{"reason"},
	)

	// InvalidVerifyTypes counts candidates excluded because their
	// verify_type matched no configured freshness window.
	InvalidVerifyTypes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionpool_invalid_verify_type_total",
			Help: "Candidate sessions excluded due to an unrecognized verify_type",
		},
	)
)
