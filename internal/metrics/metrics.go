// Package metrics exposes Prometheus collectors for pipeline runs,
// stage latency, token consumption, and per-region airspace gauges.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nugget/airspace-copilot/internal/airspace"
	"github.com/nugget/airspace-copilot/internal/analysis"
)

const namespace = "airspace"

// Metrics holds the collectors. A nil *Metrics is valid and records
// nothing, so callers never need to guard against a disabled endpoint.
type Metrics struct {
	registry *prometheus.Registry

	// pipelineRuns counts completed runs by outcome
	pipelineRuns *prometheus.CounterVec

	// pipelineDuration tracks end-to-end run latency
	pipelineDuration prometheus.Histogram

	// stageDuration tracks per-stage latency
	stageDuration *prometheus.HistogramVec

	// stageErrors counts stage failures by error kind
	stageErrors *prometheus.CounterVec

	// tokens counts model tokens by stage and direction
	tokens *prometheus.CounterVec

	aircraft    *prometheus.GaugeVec
	anomalies   *prometheus.GaugeVec
	avgAltitude *prometheus.GaugeVec
	avgVelocity *prometheus.GaugeVec

	dependencyUp *prometheus.GaugeVec
}

// New creates the collectors on a private registry that also carries
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		pipelineRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"outcome"}),
		pipelineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end pipeline run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
		}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}, []string{"stage"}),
		stageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Pipeline stage failures by error kind",
		}, []string{"stage", "kind"}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Model tokens consumed by stage, model, and direction",
		}, []string{"stage", "model", "direction"}), // direction: input or output
		aircraft: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_aircraft",
			Help:      "Tracked aircraft in the latest analyzed snapshot",
		}, []string{"region"}),
		anomalies: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_anomalies",
			Help:      "Anomalies detected in the latest analyzed snapshot",
		}, []string{"region"}),
		avgAltitude: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_avg_altitude_meters",
			Help:      "Mean geometric altitude in the latest analyzed snapshot",
		}, []string{"region"}),
		avgVelocity: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_avg_velocity_mps",
			Help:      "Mean ground speed in the latest analyzed snapshot",
		}, []string{"region"}),
		dependencyUp: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dependency_up",
			Help:      "1 if the external dependency answered its last probe",
		}, []string{"dependency"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRun records a finished pipeline run.
func (m *Metrics) ObserveRun(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(ErrorKind(err)).Inc()
	m.pipelineDuration.Observe(d.Seconds())
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(stage, ErrorKind(err)).Inc()
	}
}

// ObserveTokens adds one reasoning call's token counts.
func (m *Metrics) ObserveTokens(stage, model string, input, output int) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(stage, model, "input").Add(float64(input))
	m.tokens.WithLabelValues(stage, model, "output").Add(float64(output))
}

// ObserveAnalysis updates the per-region gauges. Averages that are
// absent from the analysis remove the gauge so stale values are not
// scraped.
func (m *Metrics) ObserveAnalysis(a *analysis.Analysis) {
	if m == nil || a == nil {
		return
	}
	m.aircraft.WithLabelValues(a.Region).Set(float64(a.Metrics.Aircraft))
	m.anomalies.WithLabelValues(a.Region).Set(float64(len(a.Anomalies)))
	setOrDelete(m.avgAltitude, a.Region, a.Metrics.AvgAltitude)
	setOrDelete(m.avgVelocity, a.Region, a.Metrics.AvgVelocity)
}

// ObserveDependency records a dependency reachability change. Its
// signature matches connwatch.Check.OnChange.
func (m *Metrics) ObserveDependency(name string, up bool, _ error) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.dependencyUp.WithLabelValues(name).Set(v)
}

func setOrDelete(g *prometheus.GaugeVec, region string, v *float64) {
	if v == nil {
		g.DeleteLabelValues(region)
		return
	}
	g.WithLabelValues(region).Set(*v)
}

// ErrorKind maps an error onto a bounded label value.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, airspace.ErrNotFound):
		return "not_found"
	case errors.Is(err, airspace.ErrCorruptData):
		return "corrupt_data"
	case errors.Is(err, airspace.ErrUpstream):
		return "upstream"
	default:
		return "internal"
	}
}
