// Package metrics exposes Prometheus counters for the authentication flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeChallenged = "two_factor_required"
)

// Metrics holds the application counters. A nil *Metrics records nothing.
type Metrics struct {
	AuthAttempts *prometheus.CounterVec
	TokensIssued *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authsys_auth_attempts_total",
				Help: "Total number of authentication attempts by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		TokensIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authsys_tokens_issued_total",
				Help: "Total number of tokens issued by kind",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(m.AuthAttempts)
	reg.MustRegister(m.TokensIssued)

	return m
}

// NewRegistry returns a private registry carrying the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) Attempt(flow, outcome string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(flow, outcome).Inc()
}

func (m *Metrics) Issued(kind string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(kind).Inc()
}
