// Package metrics exposes Prometheus counters for the approval workflow,
// ledger postings, top-up runs and HTTP traffic. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "choreledger"

type Metrics struct {
	registry *prometheus.Registry

	completions   *prometheus.CounterVec
	postings      *prometheus.CounterVec
	postedCents   *prometheus.CounterVec
	topups        *prometheus.CounterVec
	topupRuns     *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_transitions_total",
			Help:      "Chore completion lifecycle events by action.",
		}, []string{"action"}),
		postings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_postings_total",
			Help:      "Ledger rows appended by source.",
		}, []string{"source"}),
		postedCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_posted_amount_total",
			Help:      "Sum of absolute posted amounts in whole currency units by source.",
		}, []string{"source"}),
		topups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topups_total",
			Help:      "Per-kid top-up outcomes: posted or skipped as already applied.",
		}, []string{"result"}),
		topupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topup_runs_total",
			Help:      "Top-up generator runs by status.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.completions, m.postings, m.postedCents, m.topups, m.topupRuns,
		m.httpRequests, m.httpDurations,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// CompletionTransition counts submitted, reverted, approved, rejected,
// adjusted, revoked and backfilled completions.
func (m *Metrics) CompletionTransition(action string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(action).Inc()
}

func (m *Metrics) LedgerPosted(source string, amount int64) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(source).Inc()
	if amount < 0 {
		amount = -amount
	}
	m.postedCents.WithLabelValues(source).Add(float64(amount))
}

func (m *Metrics) TopupsGenerated(posted, skipped int) {
	if m == nil {
		return
	}
	m.topups.WithLabelValues("posted").Add(float64(posted))
	m.topups.WithLabelValues("skipped").Add(float64(skipped))
}

func (m *Metrics) TopupRun(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.topupRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDurations.WithLabelValues(method).Observe(d.Seconds())
}
