// Package metrics exposes discovery results as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rmwatch"

// Outcome label values of the cycles counter.
const (
	OutcomeReachable  = "reachable"
	OutcomeOutOfReach = "out_of_reach"
)

// Collector is a prometheus.Collector for discovery cycles.
type Collector struct {
	cycles        *prometheus.CounterVec
	changes       prometheus.Counter
	reachable     prometheus.Gauge
	lastCheck     prometheus.Gauge
	helperLatency *prometheus.HistogramVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discovery_cycles_total",
				Help:      "Discovery cycles by outcome.",
			}, []string{"outcome"},
		),
		changes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rm_url_changes_total",
				Help:      "Times the ResourceManager URL was replaced by a discovered one.",
			},
		),
		reachable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rm_reachable",
				Help:      "1 if the last discovery cycle found a valid ResourceManager URL.",
			},
		),
		lastCheck: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_check_timestamp_seconds",
				Help:      "Unix time of the last discovery cycle.",
			},
		),
		helperLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "helper_request_duration_seconds",
				Help:      "Latency of the helper that ended a discovery cycle.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			}, []string{"helper"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.cycles.Describe(ch)
	c.changes.Describe(ch)
	c.reachable.Describe(ch)
	c.lastCheck.Describe(ch)
	c.helperLatency.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.cycles.Collect(ch)
	c.changes.Collect(ch)
	c.reachable.Collect(ch)
	c.lastCheck.Collect(ch)
	c.helperLatency.Collect(ch)
}

// Observe records one discovery cycle. An empty helper name skips the
// latency observation.
func (c *Collector) Observe(helper string, reachable, changed bool, latency time.Duration, checkedAt time.Time) {
	if reachable {
		c.cycles.WithLabelValues(OutcomeReachable).Inc()
		c.reachable.Set(1)
	} else {
		c.cycles.WithLabelValues(OutcomeOutOfReach).Inc()
		c.reachable.Set(0)
	}
	if changed {
		c.changes.Inc()
	}
	if !checkedAt.IsZero() {
		c.lastCheck.Set(float64(checkedAt.UnixNano()) / float64(time.Second))
	}
	if helper != "" {
		c.helperLatency.WithLabelValues(helper).Observe(latency.Seconds())
	}
}

// Handler serves c, together with Go runtime metrics, from a dedicated
// registry.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c, collectors.NewGoCollector())
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
