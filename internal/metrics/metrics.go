// Package metrics owns the Prometheus registry and every collector the
// service exports on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tipsplit"

// Distribution outcomes
const (
	OutcomeOK                = "ok"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeInvalid           = "invalid"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec

	distributions *prometheus.CounterVec
	cashGiven     prometheus.Counter
	shortfall     prometheus.Counter
	transfers     prometheus.Counter
	cacheLookups  *prometheus.CounterVec
	exports       *prometheus.CounterVec
}

// New builds a registry with the process/Go collectors and the service collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by route, method and status code.",
		}, []string{"route", "method", "status"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distributions_total",
			Help:      "Distribution requests, by outcome.",
		}, []string{"outcome"}),
		cashGiven: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cash_distributed_units_total",
			Help:      "Face value handed out from the register, in minor units.",
		}),
		shortfall: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shortfall_units_total",
			Help:      "Amount owed that could not be paid in cash, in minor units.",
		}),
		transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Balancing transfers emitted.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_cache_lookups_total",
			Help:      "Replay cache lookups, by result.",
		}, []string{"result"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Spreadsheet exports attempted by the worker, by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDurations,
		m.distributions,
		m.cashGiven,
		m.shortfall,
		m.transfers,
		m.cacheLookups,
		m.exports,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDurations.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveDistribution records a completed distribution's totals.
func (m *Metrics) ObserveDistribution(cashGiven, shortfall int64, transfers int) {
	if m == nil {
		return
	}
	m.distributions.WithLabelValues(OutcomeOK).Inc()
	m.cashGiven.Add(float64(cashGiven))
	m.shortfall.Add(float64(shortfall))
	m.transfers.Add(float64(transfers))
}

// ObserveRejected counts a distribution that did not run.
func (m *Metrics) ObserveRejected(outcome string) {
	if m == nil {
		return
	}
	m.distributions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveExport(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.exports.WithLabelValues(outcome).Inc()
}
