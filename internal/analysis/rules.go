package analysis

import (
	"strings"

	"github.com/nugget/airspace-copilot/internal/airspace"
)

// Rule thresholds. These are fixed properties of the analysis, not
// per-call parameters.
const (
	// HighVelocityMPS flags ground speeds above this value (m/s).
	HighVelocityMPS = 280.0

	// LowAltitudeM flags barometric altitudes below this value (m).
	LowAltitudeM = 300.0

	// StaleTelemetrySec flags states whose last contact trails the last
	// position fix by more than this many seconds.
	StaleTelemetrySec = 45
)

// Anomaly issue names.
const (
	IssueHighVelocity       = "High velocity"
	IssueLowAltitude        = "Low altitude"
	IssueStaleTelemetry     = "Stale telemetry"
	IssueMissingCoordinates = "Missing coordinates"
)

// missingValue is recorded for anomalies about absent data.
const missingValue = "n/a"

// detectAnomalies evaluates every rule against every state. Rules are
// independent, so one state can produce several anomalies. Output order
// is state order, then rule order.
func detectAnomalies(states []airspace.FlightState) []airspace.Anomaly {
	anomalies := []airspace.Anomaly{}
	for _, st := range states {
		anomalies = append(anomalies, checkState(st)...)
	}
	return anomalies
}

func checkState(st airspace.FlightState) []airspace.Anomaly {
	callsign := anomalyCallsign(st)
	var out []airspace.Anomaly

	if st.Velocity != nil && *st.Velocity > HighVelocityMPS {
		out = append(out, airspace.Anomaly{Callsign: callsign, Issue: IssueHighVelocity, Value: *st.Velocity})
	}
	if st.BaroAltitude != nil && *st.BaroAltitude < LowAltitudeM {
		out = append(out, airspace.Anomaly{Callsign: callsign, Issue: IssueLowAltitude, Value: *st.BaroAltitude})
	}
	if st.LastContact != nil && st.TimePosition != nil {
		if latency := *st.LastContact - *st.TimePosition; latency > StaleTelemetrySec {
			out = append(out, airspace.Anomaly{Callsign: callsign, Issue: IssueStaleTelemetry, Value: latency})
		}
	}
	if st.Latitude == nil || st.Longitude == nil {
		out = append(out, airspace.Anomaly{Callsign: callsign, Issue: IssueMissingCoordinates, Value: missingValue})
	}
	return out
}

// anomalyCallsign picks the label for an anomaly record: the trimmed
// callsign, else the ICAO24 address, else "UNKNOWN".
func anomalyCallsign(st airspace.FlightState) string {
	if st.Callsign != nil {
		if cs := strings.TrimSpace(*st.Callsign); cs != "" {
			return cs
		}
	}
	if icao := strings.TrimSpace(st.ICAO24); icao != "" {
		return icao
	}
	return "UNKNOWN"
}
