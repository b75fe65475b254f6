package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nugget/airspace-copilot/internal/airspace"
	"github.com/nugget/airspace-copilot/internal/analysis"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("x: %w", airspace.ErrNotFound), "not_found"},
		{fmt.Errorf("x: %w", airspace.ErrCorruptData), "corrupt_data"},
		{fmt.Errorf("x: %w", airspace.ErrUpstream), "upstream"},
		{fmt.Errorf("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserveRunAndStage(t *testing.T) {
	m := New()

	m.ObserveRun(nil, time.Second)
	m.ObserveRun(fmt.Errorf("llm: %w", airspace.ErrUpstream), time.Second)
	m.ObserveStage("ops", 2*time.Second, nil)
	m.ObserveStage("traveler", time.Second, fmt.Errorf("x: %w", airspace.ErrCorruptData))

	if got := testutil.ToFloat64(m.pipelineRuns.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.pipelineRuns.WithLabelValues("upstream")); got != 1 {
		t.Errorf("upstream runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.stageErrors.WithLabelValues("traveler", "corrupt_data")); got != 1 {
		t.Errorf("traveler corrupt errors = %v, want 1", got)
	}
}

func TestObserveTokens(t *testing.T) {
	m := New()
	m.ObserveTokens("ops", "llama", 100, 40)
	m.ObserveTokens("ops", "llama", 50, 10)

	if got := testutil.ToFloat64(m.tokens.WithLabelValues("ops", "llama", "input")); got != 150 {
		t.Errorf("input tokens = %v, want 150", got)
	}
	if got := testutil.ToFloat64(m.tokens.WithLabelValues("ops", "llama", "output")); got != 50 {
		t.Errorf("output tokens = %v, want 50", got)
	}
}

func TestObserveAnalysis(t *testing.T) {
	m := New()
	alt := 10500.0
	m.ObserveAnalysis(&analysis.Analysis{
		Region:    "region1",
		Metrics:   analysis.Metrics{Aircraft: 3, AvgAltitude: &alt},
		Anomalies: []airspace.Anomaly{{Callsign: "A"}, {Callsign: "B"}},
	})

	if got := testutil.ToFloat64(m.aircraft.WithLabelValues("region1")); got != 3 {
		t.Errorf("aircraft = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.anomalies.WithLabelValues("region1")); got != 2 {
		t.Errorf("anomalies = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.avgAltitude.WithLabelValues("region1")); got != 10500 {
		t.Errorf("avg altitude = %v, want 10500", got)
	}
	if n := testutil.CollectAndCount(m.avgVelocity); n != 0 {
		t.Errorf("avg velocity series = %d, want 0 when absent", n)
	}
}

func TestObserveDependency(t *testing.T) {
	m := New()
	m.ObserveDependency("reasoning", true, nil)
	m.ObserveDependency("snapshots", true, nil)
	m.ObserveDependency("snapshots", false, fmt.Errorf("bucket gone"))

	if got := testutil.ToFloat64(m.dependencyUp.WithLabelValues("reasoning")); got != 1 {
		t.Errorf("reasoning up = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.dependencyUp.WithLabelValues("snapshots")); got != 0 {
		t.Errorf("snapshots up = %v, want 0", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun(nil, time.Second)
	m.ObserveStage("ops", time.Second, nil)
	m.ObserveTokens("ops", "m", 1, 1)
	m.ObserveAnalysis(&analysis.Analysis{})
	m.ObserveDependency("reasoning", true, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRun(nil, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `airspace_pipeline_runs_total{outcome="ok"} 1`) {
		t.Errorf("exposition missing run counter:\n%s", rec.Body.String())
	}
}
