package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements valyu.Recorder and adds bot level counters.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	PollsTotal   *prometheus.CounterVec
	WaitsTotal   *prometheus.CounterVec
	WaitDuration *prometheus.HistogramVec
	WaitsActive  prometheus.Gauge

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	RateLimitHitsTotal prometheus.Counter
	CommandsTotal      *prometheus.CounterVec
}

// New registers the collectors on a private registry, so several instances
// can live in one process (tests, CLI and bot).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valyu_requests_total",
				Help: "Total number of Valyu API calls",
			},
			[]string{"endpoint", "outcome"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "valyu_request_duration_seconds",
				Help:    "Valyu API call duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"endpoint"},
		),

		PollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valyu_research_polls_total",
				Help: "Research status polls by observed status or error kind",
			},
			[]string{"outcome"},
		),
		WaitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valyu_research_waits_total",
				Help: "Finished research waits by outcome",
			},
			[]string{"outcome"},
		),
		WaitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "valyu_research_wait_duration_seconds",
				Help:    "Time spent waiting for research tasks",
				Buckets: []float64{5, 30, 60, 300, 900, 1800, 3600, 5400},
			},
			[]string{"outcome"},
		),
		WaitsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "valyu_research_waits_active",
				Help: "Research waits currently in progress",
			},
		),

		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "valyu_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),
		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "valyu_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),

		RateLimitHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "valyu_bot_rate_limit_hits_total",
				Help: "Total number of rejected bot commands",
			},
		),
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valyu_bot_commands_total",
				Help: "Bot commands handled",
			},
			[]string{"command", "status"},
		),
	}

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(endpoint, outcome string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *Metrics) RecordPoll(outcome string) {
	m.PollsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordWait(outcome string, duration time.Duration) {
	m.WaitsTotal.WithLabelValues(outcome).Inc()
	m.WaitDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordRateLimitHit() {
	m.RateLimitHitsTotal.Inc()
}

func (m *Metrics) RecordCommand(command, status string) {
	m.CommandsTotal.WithLabelValues(command, status).Inc()
}

func (m *Metrics) IncWaitsActive() {
	m.WaitsActive.Inc()
}

func (m *Metrics) DecWaitsActive() {
	m.WaitsActive.Dec()
}
