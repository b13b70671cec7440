// Package metrics exposes Prometheus collectors for catalog calls, counter
// store operations and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moviescope"

// Outcome labels shared by the collectors.
const (
	OutcomeOK    = "ok"
	OutcomeAuth  = "auth"
	OutcomeError = "error"
	OutcomeNoop  = "noop"
)

type Recorder interface {
	CatalogRequest(endpoint, outcome string, d time.Duration)
	StoreOperation(op, outcome string)
	StaleResponse()
	HTTPRequest(route string, status int, d time.Duration)
}

type Prometheus struct {
	catalogRequests *prometheus.CounterVec
	catalogDuration *prometheus.HistogramVec
	storeOps        *prometheus.CounterVec
	staleResponses  prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	gatherer        prometheus.Gatherer
}

// New registers the collectors on reg. Pass a fresh registry in tests to
// avoid clashing with the global one.
func New(reg *prometheus.Registry) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		catalogRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Catalog API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		catalogDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_request_duration_seconds",
			Help:      "Catalog API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		storeOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_store_operations_total",
			Help:      "Counter store operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		staleResponses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_stale_responses_total",
			Help:      "Search responses discarded because a newer query was issued.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: reg,
	}
}

func (p *Prometheus) CatalogRequest(endpoint, outcome string, d time.Duration) {
	p.catalogRequests.WithLabelValues(endpoint, outcome).Inc()
	p.catalogDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (p *Prometheus) StoreOperation(op, outcome string) {
	p.storeOps.WithLabelValues(op, outcome).Inc()
}

func (p *Prometheus) StaleResponse() { p.staleResponses.Inc() }

func (p *Prometheus) HTTPRequest(route string, status int, d time.Duration) {
	p.httpRequests.WithLabelValues(route, statusBucket(status)).Inc()
	p.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func statusBucket(code int) string {
	if code < 100 || code > 599 {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code/100) + "xx"
}

// Nop drops everything. Used when metrics are disabled.
type Nop struct{}

func (Nop) CatalogRequest(string, string, time.Duration) {}
func (Nop) StoreOperation(string, string)                {}
func (Nop) StaleResponse()                               {}
func (Nop) HTTPRequest(string, int, time.Duration)       {}
