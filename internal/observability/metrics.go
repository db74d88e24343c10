package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects pump, spectrometer and run metrics on its own registry
type Metrics struct {
	registry        *prometheus.Registry
	pumpCommands    *prometheus.CounterVec
	pumpErrors      *prometheus.CounterVec
	acquisitions    *prometheus.CounterVec
	acquisitionTime *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
	sequencerState  *prometheus.GaugeVec
	targetConc      prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pumpCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nanosynth_pump_commands_total",
			Help: "Total pump commands sent by port and verb.",
		}, []string{"port", "verb"}),
		pumpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nanosynth_pump_command_errors_total",
			Help: "Total pump commands that failed or were rejected.",
		}, []string{"port", "verb"}),
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nanosynth_spectrometer_acquisitions_total",
			Help: "Total averaged acquisitions by spectrometer serial.",
		}, []string{"serial"}),
		acquisitionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nanosynth_spectrometer_acquisition_seconds",
			Help:    "Duration of averaged acquisitions.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"serial"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nanosynth_runs_total",
			Help: "Total recorded runs by variant and final status.",
		}, []string{"variant", "status"}),
		sequencerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nanosynth_sequencer_state",
			Help: "1 for the sequencer's current state, 0 otherwise.",
		}, []string{"state"}),
		targetConc: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nanosynth_target_concentration_mm",
			Help: "Most recent target concentration in mM.",
		}),
	}

	m.registry.MustRegister(
		m.pumpCommands,
		m.pumpErrors,
		m.acquisitions,
		m.acquisitionTime,
		m.runsTotal,
		m.sequencerState,
		m.targetConc,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCommand implements pump.CommandObserver
func (m *Metrics) ObserveCommand(port, command string, err error) {
	if m == nil {
		return
	}
	verb, _, _ := strings.Cut(command, " ")
	m.pumpCommands.WithLabelValues(port, verb).Inc()
	if err != nil {
		m.pumpErrors.WithLabelValues(port, verb).Inc()
	}
}

// ObserveAcquisition implements spectrometer.AcquisitionObserver
func (m *Metrics) ObserveAcquisition(serial string, count int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(serial).Inc()
	m.acquisitionTime.WithLabelValues(serial).Observe(elapsed.Seconds())
}

func (m *Metrics) RunRecorded(variant, status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(variant, status).Inc()
}

// SetState marks state as current and clears the previous one
func (m *Metrics) SetState(previous, current string) {
	if m == nil {
		return
	}
	if previous != "" && previous != current {
		m.sequencerState.WithLabelValues(previous).Set(0)
	}
	m.sequencerState.WithLabelValues(current).Set(1)
}

func (m *Metrics) SetTargetConcentration(mM float64) {
	if m == nil {
		return
	}
	m.targetConc.Set(mM)
}
