// Package metrics exposes pipeline activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pulseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spiral_stage_pulses_total",
		Help: "Stage pulses by stage and result",
	}, []string{"stage", "result"})

	pulseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spiral_stage_pulse_duration_seconds",
		Help:    "Stage pulse duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"stage"})

	actionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spiral_artifact_actions_total",
		Help: "Artifact lifecycle actions by stage and action",
	}, []string{"stage", "action"})

	experimentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spiral_experiments_total",
		Help: "Sandboxed executions by status",
	}, []string{"status"})

	chaosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spiral_chaos_events_total",
		Help: "Injected chaos events by kind",
	}, []string{"kind"})

	generation = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spiral_generation",
		Help: "Current generation counter",
	})

	control = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spiral_control_parameter",
		Help: "Current value of each adaptive control parameter",
	}, []string{"parameter"})

	stageAlive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spiral_stage_alive",
		Help: "1 when a supervised stage is running",
	}, []string{"stage"})
)

// ObservePulse records one pulse outcome.
func ObservePulse(stage string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	pulseTotal.WithLabelValues(stage, result).Inc()
	pulseDuration.WithLabelValues(stage).Observe(took.Seconds())
}

// CountAction records a lifecycle action.
func CountAction(stage, action string) {
	actionTotal.WithLabelValues(stage, action).Inc()
}

// CountExperiment records a harness outcome.
func CountExperiment(status string) {
	experimentTotal.WithLabelValues(status).Inc()
}

// CountChaos records an injected fault.
func CountChaos(kind string) {
	chaosTotal.WithLabelValues(kind).Inc()
}

// SetGeneration publishes the generation counter.
func SetGeneration(n int) {
	generation.Set(float64(n))
}

// SetControl publishes an adaptive parameter.
func SetControl(name string, value float64) {
	control.WithLabelValues(name).Set(value)
}

// SetAlive publishes stage liveness.
func SetAlive(stage string, alive bool) {
	v := 0.0
	if alive {
		v = 1
	}
	stageAlive.WithLabelValues(stage).Set(v)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
