// Package airspace defines the flight telemetry records shared by every
// component of the copilot: per-region snapshots, the shared alert
// collection, and the error kinds used to classify failures.
//
// Field names and JSON tags follow the OpenSky state-vector layout the
// ingestion job writes to disk. Optional telemetry is carried as
// pointers so that a missing reading is never confused with a zero
// reading (an aircraft at 0 m/s is not the same as one with no
// velocity report).
package airspace

import "strings"

// FlightState is one aircraft's telemetry at a point in time. Values
// are decoded fresh for every request and must be treated as
// read-only by consumers.
type FlightState struct {
	ICAO24         string   `json:"icao24"`
	Callsign       *string  `json:"callsign"`
	OriginCountry  *string  `json:"origin_country,omitempty"`
	TimePosition   *int64   `json:"time_position"`
	LastContact    *int64   `json:"last_contact"`
	Longitude      *float64 `json:"longitude"`
	Latitude       *float64 `json:"latitude"`
	BaroAltitude   *float64 `json:"baro_altitude"`
	OnGround       *bool    `json:"on_ground"`
	Velocity       *float64 `json:"velocity"`
	TrueTrack      *float64 `json:"true_track"`
	VerticalRate   *float64 `json:"vertical_rate"`
	GeoAltitude    *float64 `json:"geo_altitude"`
	Squawk         *string  `json:"squawk,omitempty"`
	SPI            *bool    `json:"spi,omitempty"`
	PositionSource *int     `json:"position_source,omitempty"`
}

// NormalizedCallsign returns the callsign trimmed and upper-cased, or
// "" when the state carries no callsign.
func (s FlightState) NormalizedCallsign() string {
	if s.Callsign == nil {
		return ""
	}
	return NormalizeCallsign(*s.Callsign)
}

// Altitude returns the geometric altitude when reported, otherwise the
// barometric altitude. Nil when neither is present.
func (s FlightState) Altitude() *float64 {
	if s.GeoAltitude != nil {
		return s.GeoAltitude
	}
	return s.BaroAltitude
}

// IsOnGround reports whether the on_ground flag is present and set.
func (s FlightState) IsOnGround() bool {
	return s.OnGround != nil && *s.OnGround
}

// NormalizeCallsign trims surrounding whitespace and upper-cases a
// callsign so that " abc123 " and "ABC123" compare equal.
func NormalizeCallsign(callsign string) string {
	return strings.ToUpper(strings.TrimSpace(callsign))
}

// Snapshot is a region's most recent captured telemetry. A new
// snapshot fully replaces the previous one for the same region.
type Snapshot struct {
	Region      string             `json:"region"`
	LastUpdated string             `json:"last_updated"`
	Bounds      map[string]float64 `json:"bounds"`
	States      []FlightState      `json:"states"`
}

// Alert is a condition detected by the ingestion side.
type Alert struct {
	ID         string  `json:"id"`
	Region     string  `json:"region"`
	Callsign   *string `json:"callsign"`
	Type       string  `json:"type"`
	Severity   string  `json:"severity"`
	Message    string  `json:"message"`
	DetectedAt string  `json:"detected_at"`
}

// AlertsResponse is the alert collection shared by all regions.
type AlertsResponse struct {
	LastUpdated string  `json:"last_updated"`
	Alerts      []Alert `json:"alerts"`
}

// EmptyAlerts is returned when no alert data has been written yet.
func EmptyAlerts() *AlertsResponse {
	return &AlertsResponse{LastUpdated: "", Alerts: []Alert{}}
}

// Anomaly is a rule violation found in a single flight state. Value is
// the offending reading (a number) or the string "n/a" when the
// anomaly is about missing data.
type Anomaly struct {
	Callsign string `json:"callsign"`
	Issue    string `json:"issue"`
	Value    any    `json:"value"`
}
