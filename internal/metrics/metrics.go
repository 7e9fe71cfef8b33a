// Package metrics exposes the daemon's prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's collectors. A nil *Metrics is a valid no-op
// receiver so tests can pass nil instead of registering collectors.
type Metrics struct {
	cycles         prometheus.Counter
	transitions    prometheus.Counter
	cycleDuration  prometheus.Histogram
	commandsSent   *prometheus.CounterVec
	commandsFailed *prometheus.CounterVec

	activeSchedules prometheus.Gauge
	activeDevices   prometheus.Gauge
	anyoneHome      prometheus.Gauge
}

// New creates and registers the daemon collectors.
func New() *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heating_control_cycles_total",
			Help: "Total decision cycles executed.",
		}),
		transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heating_control_transitions_total",
			Help: "Total cycles where a transition triggered command dispatch.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "heating_control_cycle_duration_seconds",
			Help:    "Histogram of full cycle durations including dispatch.",
			Buckets: prometheus.DefBuckets,
		}),
		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heating_control_commands_sent_total",
			Help: "Total device commands sent, by verb.",
		}, []string{"verb"}),
		commandsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heating_control_commands_failed_total",
			Help: "Total device commands that failed, by verb.",
		}, []string{"verb"}),
		activeSchedules: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heating_control_active_schedules",
			Help: "Schedules active in the latest cycle.",
		}),
		activeDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heating_control_active_devices",
			Help: "Devices with a resolved target in the latest cycle.",
		}),
		anyoneHome: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heating_control_anyone_home",
			Help: "Global presence summary (1 when anyone is home).",
		}),
	}

	prometheus.MustRegister(
		m.cycles,
		m.transitions,
		m.cycleDuration,
		m.commandsSent,
		m.commandsFailed,
		m.activeSchedules,
		m.activeDevices,
		m.anyoneHome,
	)

	return m
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Cycle records one completed decision cycle.
func (m *Metrics) Cycle(durationSeconds float64, transition bool) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(durationSeconds)
	if transition {
		m.transitions.Inc()
	}
}

// Command records one dispatched command outcome.
func (m *Metrics) Command(verb string, success bool) {
	if m == nil {
		return
	}
	if success {
		m.commandsSent.WithLabelValues(verb).Inc()
	} else {
		m.commandsFailed.WithLabelValues(verb).Inc()
	}
}

// Decision records gauges from the latest snapshot.
func (m *Metrics) Decision(activeSchedules, activeDevices int, anyoneHome bool) {
	if m == nil {
		return
	}
	m.activeSchedules.Set(float64(activeSchedules))
	m.activeDevices.Set(float64(activeDevices))
	if anyoneHome {
		m.anyoneHome.Set(1)
	} else {
		m.anyoneHome.Set(0)
	}
}
