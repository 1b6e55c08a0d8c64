package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phenrril/modularstore/internal/usecase"
)

type Metrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
	Checkouts *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the server collectors on reg. A nil reg gets a private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modularstore",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "modularstore",
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modularstore",
		Subsystem: "checkout",
		Name:      "outcomes_total",
		Help:      "Checkout submissions and payment reconciliations by resulting step.",
	}, []string{"action", "step"})

	reg.MustRegister(requests, latency, checkouts)
	return &Metrics{Requests: requests, LatencyMS: latency, Checkouts: checkouts, gatherer: reg}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) observeCheckout(action string, step usecase.Step) {
	m.Checkouts.WithLabelValues(action, string(step)).Inc()
}
