package pipeline

import (
	"slices"

	"github.com/nugget/airspace-copilot/internal/airspace"
	"github.com/nugget/airspace-copilot/internal/analysis"
	"github.com/nugget/airspace-copilot/internal/compact"
)

// Stage names.
const (
	StageOps      = "ops"
	StageTraveler = "traveler"
)

// Input is what a caller supplies to start a run.
type Input struct {
	Region   string `json:"region"`
	Callsign string `json:"callsign"`
	Question string `json:"question"`
}

// State is the record carried through a run. Each stage receives the
// prior State by value and returns a new one with its own fields set;
// fields written by an earlier stage are never cleared. Pointer fields
// reference data that is read-only once written.
type State struct {
	RunID    string
	Region   string
	Callsign string
	Question string

	// Written by the ops stage.
	OpsReport     string
	OpsStructured *analysis.Analysis
	Alerts        *airspace.AlertsResponse
	LastUpdated   string
	Handoff       string

	// Written by the traveler stage.
	TravelerResponse string
	FlightContext    *compact.FlightPayload

	// Trace lists the stages completed so far, in order.
	Trace []string
}

// advance returns a copy of s that records stage as completed. The
// trace slice is cloned so the copy never aliases its predecessor.
func (s State) advance(stage string) State {
	s.Trace = append(slices.Clone(s.Trace), stage)
	return s
}

// Result is the caller-facing output of a completed run. All five
// fields are always populated on success.
type Result struct {
	OpsReport        string                   `json:"ops_report"`
	TravelerResponse string                   `json:"traveler_response"`
	OpsStructured    *analysis.Analysis       `json:"ops_structured"`
	FlightContext    *compact.FlightPayload   `json:"flight_context"`
	Alerts           *airspace.AlertsResponse `json:"alerts"`
}

// Result projects the final state onto the caller-facing result.
func (s State) Result() *Result {
	return &Result{
		OpsReport:        s.OpsReport,
		TravelerResponse: s.TravelerResponse,
		OpsStructured:    s.OpsStructured,
		FlightContext:    s.FlightContext,
		Alerts:           s.Alerts,
	}
}
