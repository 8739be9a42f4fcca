package kafka

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// metricSet is private to one runner; the shared event counters live in
// observability.
type metricSet struct {
	apply      *prometheus.CounterVec
	proc       *prometheus.HistogramVec
	partitions prometheus.Gauge
}

func newMetricSet(r prometheus.Registerer) *metricSet {
	m := &metricSet{
		apply: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metadata_invalidation_apply_total",
				Help: "Store actions taken per invalidation event (evict, skip_revision).",
			},
			[]string{"action"},
		),
		proc: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "metadata_invalidation_processing_seconds",
				Help:    "Time to decode and apply one invalidation event, by op.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"op"},
		),
		partitions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metadata_invalidation_assigned_partitions",
			Help: "Partitions of the metadata change topic held by this instance.",
		}),
	}
	if r != nil {
		for _, c := range []prometheus.Collector{m.apply, m.proc, m.partitions} {
			if err := r.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
			}
		}
	}
	return m
}
