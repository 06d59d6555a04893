package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors exposed on GET /metrics. This is
// additive observability: it never gates a decision and is not one of the
// spec's named local endpoints, so it is not subject to the
// allowlist/schema/rate-limit chain.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	denialsTotal       *prometheus.CounterVec
	sanitizationsTotal prometheus.Counter
	rateLimitRejected  *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// NewMetrics registers the proxy's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "egressproxy_requests_total",
			Help: "Total requests handled by dispatch arm.",
		}, []string{"arm"}),
		denialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "egressproxy_denials_total",
			Help: "Total allowlist denials by dispatch arm.",
		}, []string{"arm"}),
		sanitizationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "egressproxy_sanitizations_total",
			Help: "Total responses/requests where content sanitization fired.",
		}),
		rateLimitRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "egressproxy_rate_limit_rejections_total",
			Help: "Total requests denied by a rate-limit window.",
		}, []string{"key"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "egressproxy_request_duration_seconds",
			Help:    "Request handling duration by dispatch arm.",
			Buckets: prometheus.DefBuckets,
		}, []string{"arm"}),
	}
}

func (m *Metrics) observeRequest(arm string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(arm).Inc()
	m.requestDuration.WithLabelValues(arm).Observe(seconds)
}

func (m *Metrics) observeDenial(arm string) {
	if m == nil {
		return
	}
	m.denialsTotal.WithLabelValues(arm).Inc()
}

func (m *Metrics) observeSanitization() {
	if m == nil {
		return
	}
	m.sanitizationsTotal.Inc()
}

func (m *Metrics) observeRateLimitRejection(key string) {
	if m == nil {
		return
	}
	m.rateLimitRejected.WithLabelValues(key).Inc()
}
