package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var scenarioLabel atomic.Value

func init() {
	scenarioLabel.Store("baseline")
	current.Store(newCollectors())
}

func SetScenario(s string) {
	if s == "" {
		s = "baseline"
	}
	scenarioLabel.Store(s)
}

func getScenario() string {
	if v := scenarioLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "baseline"
}

type collectors struct {
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	upstreamLatencySeconds     *prometheus.HistogramVec
	upstreamFailures           *prometheus.CounterVec
	authFailures               *prometheus.CounterVec
	cacheResults               *prometheus.CounterVec
	cacheOpDuration            *prometheus.HistogramVec
	accessMethodResolutions    *prometheus.CounterVec
	orderChunks                prometheus.Histogram
	updatesPublished           *prometheus.CounterVec
	invalidationEvents         *prometheus.CounterVec
	invalidationLagSeconds     prometheus.Gauge
}

var current atomic.Pointer[collectors]

func newCollectors() *collectors {
	return &collectors{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status", "scenario"},
		),
		httpRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"method", "route", "status", "scenario"},
		),
		upstreamLatencySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_latency_seconds",
				Help:    "Latency of upstream calls in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"upstream", "scenario"},
		),
		upstreamFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_failures_total",
				Help: "Upstream calls that did not return 2xx, by kind (http, transport).",
			},
			[]string{"upstream", "kind"},
		),
		authFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_failures_total",
				Help: "Session token resolution failures by reason.",
			},
			[]string{"reason"},
		),
		cacheResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_results_total",
				Help: "Cache results by outcome.",
			},
			[]string{"outcome", "scenario"},
		),
		cacheOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redis_operation_duration_seconds",
				Help:    "Duration of redis operations.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"op", "result"},
		),
		accessMethodResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_method_resolutions_total",
				Help: "Per-collection access method resolutions by outcome.",
			},
			[]string{"outcome"},
		),
		orderChunks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "order_chunk_count",
				Help:    "Number of sub-orders attached to resolved order methods.",
				Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
			},
		),
		updatesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "state_updates_published_total",
				Help: "State update effects handed to the publisher, by effect and result.",
			},
			[]string{"effect", "result"},
		),
		invalidationEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metadata_invalidation_events_total",
				Help: "Collection metadata invalidation events by result.",
			},
			[]string{"result"},
		),
		invalidationLagSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "metadata_invalidation_lag_seconds",
				Help: "Lag between event timestamp and processing of the last invalidation.",
			},
		),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.httpRequestsTotal,
		c.httpRequestDurationSeconds,
		c.upstreamLatencySeconds,
		c.upstreamFailures,
		c.authFailures,
		c.cacheResults,
		c.cacheOpDuration,
		c.accessMethodResolutions,
		c.orderChunks,
		c.updatesPublished,
		c.invalidationEvents,
		c.invalidationLagSeconds,
	}
}

// Init installs a fresh set of collectors. When enabled they are registered
// with reg; otherwise observations are still accepted but never exported.
func Init(reg prometheus.Registerer, enabled bool) {
	c := newCollectors()
	if enabled && reg != nil {
		reg.MustRegister(c.all()...)
	}
	current.Store(c)
}

func m() *collectors { return current.Load() }

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	s := getScenario()
	st := strconv.Itoa(status)
	m().httpRequestsTotal.WithLabelValues(method, route, st, s).Inc()
	m().httpRequestDurationSeconds.WithLabelValues(method, route, st, s).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	m().upstreamLatencySeconds.WithLabelValues(upstream, getScenario()).Observe(durationSeconds)
}

func IncUpstreamFailure(upstream, kind string) {
	m().upstreamFailures.WithLabelValues(upstream, kind).Inc()
}

func IncAuthFailure(reason string) {
	m().authFailures.WithLabelValues(reason).Inc()
}

func IncCacheHit(scenario string) {
	s := scenario
	if s == "" {
		s = getScenario()
	}
	m().cacheResults.WithLabelValues("hit", s).Inc()
}

func IncCacheMiss(scenario string) {
	s := scenario
	if s == "" {
		s = getScenario()
	}
	m().cacheResults.WithLabelValues("miss", s).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m().cacheOpDuration.WithLabelValues(op, result).Observe(durationSeconds)
}

func IncAccessMethodResolution(outcome string) {
	m().accessMethodResolutions.WithLabelValues(outcome).Inc()
}

func ObserveOrderChunks(n int) {
	m().orderChunks.Observe(float64(n))
}

func IncUpdatePublished(effect string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m().updatesPublished.WithLabelValues(effect, result).Inc()
}

func IncInvalidationEvent(result string) {
	m().invalidationEvents.WithLabelValues(result).Inc()
}

func SetInvalidationLagSeconds(v float64) {
	m().invalidationLagSeconds.Set(v)
}
