package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors exported on /metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	feedPolls       *prometheus.CounterVec
	feedWatchers    prometheus.Gauge
	rateLimited     *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reunite",
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the Reunite API, by route and status code.",
		}, []string{"route", "code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reunite",
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of requests to the Reunite API.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		feedPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reunite",
			Name:      "feed_polls_total",
			Help:      "Claim message fetches issued by feed pollers, by outcome.",
		}, []string{"outcome"}),
		feedWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reunite",
			Name:      "feed_active_topics",
			Help:      "Claim message topics with at least one subscriber.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reunite",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by scope.",
		}, []string{"scope"}),
	}
	m.registry.MustRegister(
		m.upstreamTotal,
		m.upstreamLatency,
		m.feedPolls,
		m.feedWatchers,
		m.rateLimited,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveUpstream records one API call. code is 0 for transport failures.
func (m *Metrics) ObserveUpstream(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.upstreamTotal.WithLabelValues(route, label).Inc()
	m.upstreamLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// FeedPoll records a poller fetch with outcome "changed", "unchanged",
// "error" or "discarded".
func (m *Metrics) FeedPoll(outcome string) {
	if m == nil {
		return
	}
	m.feedPolls.WithLabelValues(outcome).Inc()
}

// FeedTopics tracks the number of live feed topics.
func (m *Metrics) FeedTopics(delta int) {
	if m == nil {
		return
	}
	m.feedWatchers.Add(float64(delta))
}

func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
