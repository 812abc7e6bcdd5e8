// Package metrics provides Prometheus metrics for the security plane:
// request RED metrics plus domain counters for logins, risk decisions, and
// session revocations. Scraped at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "accountsec"

var (
	// HTTPRequestTotal counts requests by method, path, status.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram.
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// LoginAttemptsTotal counts logins by outcome (success, invalid_credentials,
	// blocked, mfa_required, mfa_failed).
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// RiskDecisionsTotal counts risk evaluations by level and recommended action.
	RiskDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_decisions_total",
			Help:      "Total number of login risk evaluations by level and action.",
		},
		[]string{"level", "action"},
	)

	// PasswordEvaluationsTotal counts password strength checks by label.
	PasswordEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_evaluations_total",
			Help:      "Total number of password strength evaluations by label.",
		},
		[]string{"strength"},
	)

	// MFAEnrollmentsCompletedTotal counts finished MFA enrollments by method.
	MFAEnrollmentsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mfa_enrollments_completed_total",
			Help:      "Total number of completed MFA enrollments by method.",
		},
		[]string{"method"},
	)

	// SessionRevocationsTotal counts session revocations by source (self,
	// registry, reuse_detection).
	SessionRevocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_revocations_total",
			Help:      "Total number of session revocations by source.",
		},
		[]string{"source"},
	)
)
