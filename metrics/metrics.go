// Package metrics collects Prometheus metrics for the HTTP API and the
// trade workflow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"tradehub/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	trades   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradehub_http_requests_total",
			Help: "HTTP responses by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradehub_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradehub_trade_transitions_total",
			Help: "Trades created (pending) and resolved (accepted, declined).",
		}, []string{"status"}),
	}

	reg.MustRegister(c.requests, c.latency, c.trades)
	return c
}

func (c *Collector) RecordRequest(method, route string, status int, d time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(route).Observe(d.Seconds())
}

// RecordTrade satisfies service.TradeRecorder.
func (c *Collector) RecordTrade(status models.TradeStatus) {
	c.trades.WithLabelValues(string(status)).Inc()
}

// Handler serves the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
