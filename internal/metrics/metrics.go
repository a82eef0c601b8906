package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics holds the collectors of one process. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	RemoteRequests     *prometheus.CounterVec
	RemoteDuration     *prometheus.HistogramVec
	SessionTransitions *prometheus.CounterVec
	Checkouts          *prometheus.CounterVec
	StaleResponses     *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RemoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storeapi",
			Name:      "requests_total",
			Help:      "Store API calls by operation and outcome",
		}, []string{"op", "outcome"}),
		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storeapi",
			Name:      "request_duration_seconds",
			Help:      "Store API call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "session_transitions_total",
			Help:      "Session transitions by kind",
		}, []string{"kind"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome",
		}, []string{"outcome"}),
		StaleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer request was already applied",
		}, []string{"kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Headless API requests by route and status",
		}, []string{"method", "route", "status"}),
	}

	m.Registry.MustRegister(
		m.RemoteRequests,
		m.RemoteDuration,
		m.SessionTransitions,
		m.Checkouts,
		m.StaleResponses,
		m.HTTPRequests,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

func (m *Metrics) ObserveRemote(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RemoteRequests.WithLabelValues(op, outcome).Inc()
	m.RemoteDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) SessionTransition(kind string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(kind).Inc()
}

func (m *Metrics) Checkout(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StaleResponse(kind string) {
	if m == nil {
		return
	}
	m.StaleResponses.WithLabelValues(kind).Inc()
}

func (m *Metrics) HTTPRequest(method, route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
}
