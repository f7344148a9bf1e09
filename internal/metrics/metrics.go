// Package metrics holds the Prometheus collectors for generation and
// hosting.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors, registered on a private registry so
// several instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	IdentitiesGenerated prometheus.Counter
	GenerationFailures  *prometheus.CounterVec
	GenerationDuration  prometheus.Histogram
	HTTPRequests        *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		IdentitiesGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "civicid_identities_generated_total",
			Help: "Total number of identities whose artifacts were written",
		}),
		GenerationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicid_generation_failures_total",
			Help: "Total number of failed generations, labeled by reason",
		}, []string{"reason"}),
		GenerationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "civicid_generation_duration_seconds",
			Help:    "Time to render, compose and persist one identity",
			Buckets: prometheus.DefBuckets,
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicid_http_requests_total",
			Help: "Total HTTP requests, labeled by route pattern and status code",
		}, []string{"route", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
