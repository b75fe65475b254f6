// Package analysis turns a region snapshot into a situational report:
// aggregate metrics, per-aircraft anomalies, and a fixed-form summary
// sentence block.
package analysis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nugget/airspace-copilot/internal/airspace"
)

// SnapshotReader resolves a region to its latest snapshot.
type SnapshotReader interface {
	Snapshot(ctx context.Context, region string) (*airspace.Snapshot, error)
}

// Metrics are aggregates over a snapshot's states. The averages are nil
// when no state reports the underlying field, including the case of an
// empty snapshot.
type Metrics struct {
	Aircraft    int      `json:"aircraft"`
	AvgAltitude *float64 `json:"avg_altitude"`
	AvgVelocity *float64 `json:"avg_velocity"`
}

// Analysis is the full, uncompacted report for one region.
type Analysis struct {
	Region      string             `json:"region"`
	LastUpdated string             `json:"last_updated"`
	Bounds      map[string]float64 `json:"bounds"`
	Metrics     Metrics            `json:"metrics"`
	Anomalies   []airspace.Anomaly `json:"anomalies"`
	Summary     string             `json:"summary"`
}

// Engine produces analyses from stored snapshots. It is stateless and
// safe for concurrent use.
type Engine struct {
	snapshots SnapshotReader
}

// NewEngine creates an Engine reading from snapshots.
func NewEngine(snapshots SnapshotReader) *Engine {
	return &Engine{snapshots: snapshots}
}

// Analyze loads the snapshot for region and computes its report.
// Snapshot errors (not found, corrupt) are returned unchanged.
func (e *Engine) Analyze(ctx context.Context, region string) (*Analysis, error) {
	snap, err := e.snapshots.Snapshot(ctx, region)
	if err != nil {
		return nil, err
	}
	return Compute(region, snap), nil
}

// Compute builds the report for an already loaded snapshot.
func Compute(region string, snap *airspace.Snapshot) *Analysis {
	metrics := computeMetrics(snap.States)
	anomalies := detectAnomalies(snap.States)
	return &Analysis{
		Region:      region,
		LastUpdated: snap.LastUpdated,
		Bounds:      snap.Bounds,
		Metrics:     metrics,
		Anomalies:   anomalies,
		Summary:     buildSummary(region, snap.LastUpdated, metrics, len(anomalies)),
	}
}

func computeMetrics(states []airspace.FlightState) Metrics {
	m := Metrics{Aircraft: len(states)}
	if len(states) == 0 {
		return m
	}

	var altSum, velSum float64
	var altN, velN int
	for _, st := range states {
		if st.GeoAltitude != nil {
			altSum += *st.GeoAltitude
			altN++
		}
		if st.Velocity != nil {
			velSum += *st.Velocity
			velN++
		}
	}
	if altN > 0 {
		v := round2(altSum / float64(altN))
		m.AvgAltitude = &v
	}
	if velN > 0 {
		v := round2(velSum / float64(velN))
		m.AvgVelocity = &v
	}
	return m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// buildSummary composes the report text. Sentence order and inclusion
// rules are fixed so identical snapshots always yield identical text.
func buildSummary(region, lastUpdated string, m Metrics, anomalyCount int) string {
	lines := []string{
		fmt.Sprintf("Region %s has %d tracked aircraft as of %s.", region, m.Aircraft, lastUpdated),
	}
	if m.AvgAltitude != nil {
		lines = append(lines, fmt.Sprintf("Average altitude: %s m.", FormatNumber(*m.AvgAltitude)))
	}
	if m.AvgVelocity != nil {
		lines = append(lines, fmt.Sprintf("Average velocity: %s m/s.", FormatNumber(*m.AvgVelocity)))
	}
	if anomalyCount > 0 {
		lines = append(lines, fmt.Sprintf("Detected %d anomalies requiring follow-up.", anomalyCount))
	} else {
		lines = append(lines, "No anomalies detected in the last snapshot.")
	}
	return strings.Join(lines, " ")
}

// FormatNumber renders a metric with the shortest exact representation
// and always at least one decimal place (10500 → "10500.0",
// 231.456 rounded → "231.46").
func FormatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
