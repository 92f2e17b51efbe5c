package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamed0406/healthmon/internal/domain"
)

const namespace = "healthmon"

// Metrics holds the engine's collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	cycles           prometheus.Counter
	successfulCycles prometheus.Counter
	cycleDuration    prometheus.Histogram
	successRate      prometheus.Gauge
	averageLatency   prometheus.Gauge
	probeLatency     *prometheus.HistogramVec
	probeStatus      *prometheus.GaugeVec
	openAlerts       prometheus.Gauge
	alertsRaised     *prometheus.CounterVec
	persisted        prometheus.Counter
	persistFailures  prometheus.Counter
	persistDropped   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Monitoring cycles completed.",
		}),
		successfulCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "successful_cycles_total",
			Help:      "Cycles in which every probe was healthy.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one monitoring cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		successRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "success_rate",
			Help:      "Fraction of healthy probes in the latest cycle.",
		}),
		averageLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "average_latency_ms",
			Help:      "Mean probe latency in the latest cycle.",
		}),
		probeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Probe latency by probe.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"probe"}),
		probeStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_status",
			Help:      "Latest probe status: 0 healthy, 1 degraded, 2 unhealthy.",
		}, []string{"probe"}),
		openAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_alerts",
			Help:      "Currently open alerts.",
		}),
		alertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Alerts raised by severity.",
		}, []string{"severity"}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persisted_records_total",
			Help:      "Snapshot records written to the sink.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Snapshot records the sink failed to write.",
		}),
		persistDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_dropped_total",
			Help:      "Snapshot records dropped because the write queue was full.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles, m.successfulCycles, m.cycleDuration, m.successRate, m.averageLatency,
		m.probeLatency, m.probeStatus, m.openAlerts, m.alertsRaised,
		m.persisted, m.persistFailures, m.persistDropped,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveCycle records the outcome of one cycle.
func (m *Metrics) ObserveCycle(snap domain.HealthSnapshot, took time.Duration) {
	m.cycles.Inc()
	if snap.Derived.SuccessRate == 1 {
		m.successfulCycles.Inc()
	}
	m.cycleDuration.Observe(took.Seconds())
	m.successRate.Set(snap.Derived.SuccessRate)
	m.averageLatency.Set(snap.Derived.AverageLatencyMS)
	for name, r := range snap.Results {
		m.probeLatency.WithLabelValues(name).Observe(r.LatencyMS / 1000)
		m.probeStatus.WithLabelValues(name).Set(statusValue(r.Status))
	}
}

func (m *Metrics) SetOpenAlerts(n int) { m.openAlerts.Set(float64(n)) }

func (m *Metrics) AlertRaised(sev domain.Severity) { m.alertsRaised.WithLabelValues(string(sev)).Inc() }

func (m *Metrics) Persisted()      { m.persisted.Inc() }
func (m *Metrics) PersistFailed()  { m.persistFailures.Inc() }
func (m *Metrics) PersistDropped() { m.persistDropped.Inc() }

func statusValue(s domain.Status) float64 {
	switch s {
	case domain.StatusHealthy:
		return 0
	case domain.StatusDegraded:
		return 1
	}
	return 2
}
