// Package traveler resolves the flight context a traveler-facing reply
// is built from: where the aircraft is, which snapshot it came from, and
// a one-line status sentence.
package traveler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nugget/airspace-copilot/internal/airspace"
	"github.com/nugget/airspace-copilot/internal/locator"
)

// Status sentences.
const (
	StatusNotFound    = "Flight not found in latest snapshots. Please verify the callsign."
	StatusNoTelemetry = "No telemetry available."
	StatusOnGround    = "Aircraft is currently on the ground."
	StatusPartial     = "Telemetry is partial but aircraft is airborne."
)

// Finder looks up an aircraft by callsign across regions.
type Finder interface {
	FindByCallsign(ctx context.Context, callsign string) (*locator.Match, error)
}

// FlightContext is the traveler-side view of one aircraft. When the
// callsign is not in any snapshot, Found is false, State is nil, and
// Status asks the traveler to verify the callsign.
type FlightContext struct {
	Found       bool                  `json:"found"`
	Region      string                `json:"region"`
	LastUpdated string                `json:"last_updated"`
	State       *airspace.FlightState `json:"state"`
	Status      string                `json:"status"`
}

// Resolver builds flight contexts. It is stateless and safe for
// concurrent use.
type Resolver struct {
	finder Finder
	logger *slog.Logger
}

// NewResolver creates a Resolver backed by finder.
func NewResolver(finder Finder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{finder: finder, logger: logger}
}

// FlightContext resolves callsign. A callsign that is not present
// anywhere is a normal outcome and returns a context with the not-found
// status and a nil error. Any other lookup failure is returned.
func (r *Resolver) FlightContext(ctx context.Context, callsign string) (*FlightContext, error) {
	match, err := r.finder.FindByCallsign(ctx, callsign)
	if errors.Is(err, airspace.ErrNotFound) {
		r.logger.Info("callsign not found in any region", "callsign", callsign)
		return &FlightContext{Status: StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve flight %q: %w", callsign, err)
	}

	state := match.State
	fc := &FlightContext{
		Found:  true,
		Region: match.Region,
		State:  &state,
		Status: DeriveStatus(&state),
	}
	if match.Snapshot != nil {
		fc.LastUpdated = match.Snapshot.LastUpdated
	}
	return fc, nil
}

// DeriveStatus summarizes a state in one sentence.
func DeriveStatus(st *airspace.FlightState) string {
	if st == nil {
		return StatusNoTelemetry
	}
	if st.IsOnGround() {
		return StatusOnGround
	}

	alt := st.Altitude()
	hasAlt := alt != nil && *alt != 0
	hasVel := st.Velocity != nil && *st.Velocity != 0

	switch {
	case hasAlt && hasVel:
		return fmt.Sprintf("Aircraft cruising at approx %.0f m with ground speed %.0f m/s.", *alt, *st.Velocity)
	case hasAlt:
		return fmt.Sprintf("Aircraft altitude approx %.0f m.", *alt)
	default:
		return StatusPartial
	}
}
