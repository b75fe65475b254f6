// Package compact produces bounded projections of analysis, alert, and
// flight data for forwarding to a reasoning call. Payload size drives
// the cost and latency of that call, so lists are cut to a stable
// prefix: the first N entries in their original (detection) order.
package compact

import (
	"github.com/nugget/airspace-copilot/internal/airspace"
	"github.com/nugget/airspace-copilot/internal/analysis"
	"github.com/nugget/airspace-copilot/internal/traveler"
)

// Default caps.
const (
	DefaultMaxAnomalies = 15
	DefaultMaxAlerts    = 10
)

// Limits caps list lengths in compacted payloads. Zero or negative
// fields fall back to the defaults.
type Limits struct {
	Anomalies int
	Alerts    int
}

// DefaultLimits returns the standard caps.
func DefaultLimits() Limits {
	return Limits{Anomalies: DefaultMaxAnomalies, Alerts: DefaultMaxAlerts}
}

func (l Limits) normalized() Limits {
	if l.Anomalies <= 0 {
		l.Anomalies = DefaultMaxAnomalies
	}
	if l.Alerts <= 0 {
		l.Alerts = DefaultMaxAlerts
	}
	return l
}

// AnalysisPayload is the compacted analysis forwarded to the ops stage.
type AnalysisPayload struct {
	Region      string             `json:"region"`
	LastUpdated string             `json:"last_updated"`
	Metrics     analysis.Metrics   `json:"metrics"`
	Summary     string             `json:"summary"`
	Anomalies   []airspace.Anomaly `json:"anomalies"`
	Alerts      []airspace.Alert   `json:"alerts"`
}

// AlertsPayload wraps the compacted alert list.
type AlertsPayload struct {
	Alerts []airspace.Alert `json:"alerts"`
}

// FlightPayload is the compacted flight context forwarded to the
// traveler stage. Fields are nil when the flight was not found or the
// reading is absent.
type FlightPayload struct {
	Region      *string  `json:"region"`
	LastUpdated *string  `json:"last_updated"`
	Status      string   `json:"status"`
	Callsign    *string  `json:"callsign"`
	ICAO24      *string  `json:"icao24"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Altitude    *float64 `json:"altitude"`
	Velocity    *float64 `json:"velocity"`
	OnGround    *bool    `json:"on_ground"`
}

// Analysis compacts a full analysis and alert collection. The bounds
// are dropped; the anomaly and alert lists are truncated to limits.
func Analysis(a *analysis.Analysis, alerts *airspace.AlertsResponse, limits Limits) AnalysisPayload {
	limits = limits.normalized()
	var alertList []airspace.Alert
	if alerts != nil {
		alertList = alerts.Alerts
	}
	return AnalysisPayload{
		Region:      a.Region,
		LastUpdated: a.LastUpdated,
		Metrics:     a.Metrics,
		Summary:     a.Summary,
		Anomalies:   prefix(a.Anomalies, limits.Anomalies),
		Alerts:      prefix(alertList, limits.Alerts),
	}
}

// Alerts returns at most limit alerts from the collection.
func Alerts(alerts *airspace.AlertsResponse, limit int) AlertsPayload {
	if limit <= 0 {
		limit = DefaultMaxAlerts
	}
	if alerts == nil {
		return AlertsPayload{Alerts: []airspace.Alert{}}
	}
	return AlertsPayload{Alerts: prefix(alerts.Alerts, limit)}
}

// Flight projects a flight context down to the fields a traveler reply
// needs. Altitude is geometric when reported, else barometric.
func Flight(fc *traveler.FlightContext) FlightPayload {
	p := FlightPayload{Status: fc.Status}
	if fc.Region != "" {
		p.Region = &fc.Region
	}
	if fc.LastUpdated != "" {
		p.LastUpdated = &fc.LastUpdated
	}

	st := fc.State
	if st == nil {
		return p
	}
	p.Callsign = st.Callsign
	if st.ICAO24 != "" {
		icao := st.ICAO24
		p.ICAO24 = &icao
	}
	p.Latitude = st.Latitude
	p.Longitude = st.Longitude
	p.Altitude = st.Altitude()
	p.Velocity = st.Velocity
	p.OnGround = st.OnGround
	return p
}

// prefix returns a copy of the first n elements of s. The copy keeps
// the compacted payload independent of the caller's slice. A nil input
// yields an empty, non-nil slice so the JSON form is [] rather than null.
func prefix[T any](s []T, n int) []T {
	if len(s) < n {
		n = len(s)
	}
	out := make([]T, n)
	copy(out, s[:n])
	return out
}
