// Package metrics generalizes the teacher's per-service Prometheus
// counters (services/auth/internal/observability/metrics,
// services/keys/internal/observability/metrics) to nova-chat-server's
// own routes and domain events.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novachat_http_requests_total",
			Help: "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novachat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AuthRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novachat_auth_registrations_total",
			Help: "Total number of registration attempts.",
		},
		[]string{"result"},
	)

	AuthLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novachat_auth_logins_total",
			Help: "Total number of login attempts.",
		},
		[]string{"result"},
	)

	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novachat_tokens_issued_total",
			Help: "Total number of tokens issued or refreshed.",
		},
		[]string{"flow", "result"},
	)

	MessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novachat_messages_sent_total",
			Help: "Total number of messages sent.",
		},
		[]string{"result"},
	)

	StorePoolAcquireDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "novachat_store_pool_acquire_duration_seconds",
			Help:    "Time spent waiting to acquire a store connection.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers every collector against the default Prometheus
// registry. Call once during startup.
func Register() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		AuthRegistrationsTotal,
		AuthLoginsTotal,
		TokensIssuedTotal,
		MessagesSentTotal,
		StorePoolAcquireDurationSeconds,
	)
}

// Handler returns the /metrics endpoint's http.Handler. This is the
// one deliberate exception to the uniform JSON envelope: it serves
// plain Prometheus text exposition (DESIGN.md).
func Handler() http.Handler {
	return promhttp.Handler()
}
