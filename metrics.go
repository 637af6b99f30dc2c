package silo

import "github.com/prometheus/client_golang/prometheus"

// metrics bundles the scheduler and deferred mutation queue's Prometheus
// collectors. A Runtime owns one set and registers it against its own
// registry rather than the global one, so that multiple Runtimes (as in
// tests) never collide on metric registration. The scheduler updates
// tickDuration, systemDuration, systemsAdmitted and systemsBlocked;
// operationsApplied and entitiesAlive are registered but nothing in this
// package updates them.
type metrics struct {
	registry *prometheus.Registry

	tickDuration      prometheus.Histogram
	systemDuration    *prometheus.HistogramVec
	systemsAdmitted   prometheus.Counter
	systemsBlocked    prometheus.Counter
	operationsApplied *prometheus.CounterVec
	entitiesAlive     prometheus.Gauge
}

func newMetrics(enabled bool) *metrics {
	m := &metrics{registry: prometheus.NewRegistry()}

	m.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "silo_tick_duration_seconds",
		Help:    "Wall-clock duration of a single Runtime.Tick call.",
		Buckets: prometheus.DefBuckets,
	})
	m.systemDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "silo_system_duration_seconds",
		Help:    "Wall-clock duration of a single System invocation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"system"})
	m.systemsAdmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "silo_systems_admitted_total",
		Help: "Number of System invocations the scheduler admitted.",
	})
	m.systemsBlocked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "silo_systems_blocked_total",
		Help: "Number of times a System's admission was deferred to lock contention.",
	})
	m.operationsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "silo_deferred_operations_applied_total",
		Help: "Deferred mutation queue operations applied, by kind.",
	}, []string{"kind"})
	m.entitiesAlive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "silo_entities_alive",
		Help: "Number of live entities across all archetypes.",
	})

	if !enabled {
		return m
	}
	m.registry.MustRegister(
		m.tickDuration,
		m.systemDuration,
		m.systemsAdmitted,
		m.systemsBlocked,
		m.operationsApplied,
		m.entitiesAlive,
	)
	return m
}
