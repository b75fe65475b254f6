// Package pipeline runs the two-stage ops → traveler workflow.
//
// A run is a fixed, unconditional sequence: the ops stage analyzes the
// region and asks the reasoning model for a sectioned report; the
// traveler stage resolves the flight and asks for a short reply using
// the report's HANDOFF section. Stages never run concurrently within a
// run, and each run owns its State, so one Pipeline serves concurrent
// requests.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/airspace-copilot/internal/airspace"
	"github.com/nugget/airspace-copilot/internal/analysis"
	"github.com/nugget/airspace-copilot/internal/compact"
	"github.com/nugget/airspace-copilot/internal/prompts"
	"github.com/nugget/airspace-copilot/internal/traveler"
)

// Analyzer produces the full analysis for a region.
type Analyzer interface {
	Analyze(ctx context.Context, region string) (*analysis.Analysis, error)
}

// AlertSource lists current alerts.
type AlertSource interface {
	Alerts(ctx context.Context) (*airspace.AlertsResponse, error)
}

// FlightResolver builds the traveler-side view of a callsign. A
// callsign that is not found must yield a context, not an error.
type FlightResolver interface {
	FlightContext(ctx context.Context, callsign string) (*traveler.FlightContext, error)
}

// Observer receives run and stage measurements.
type Observer interface {
	ObserveRun(err error, d time.Duration)
	ObserveStage(stage string, d time.Duration, err error)
	ObserveAnalysis(a *analysis.Analysis)
}

type nopObserver struct{}

func (nopObserver) ObserveRun(error, time.Duration)           {}
func (nopObserver) ObserveStage(string, time.Duration, error) {}
func (nopObserver) ObserveAnalysis(*analysis.Analysis)        {}

// Config wires a Pipeline's collaborators. Analyzer, Alerts, Flights,
// and Reasoner are required.
type Config struct {
	Analyzer Analyzer
	Alerts   AlertSource
	Flights  FlightResolver
	Reasoner Reasoner
	Limits   compact.Limits
	Timeout  time.Duration // whole-run bound; zero means none
	Observer Observer
	Logger   *slog.Logger
}

type stage struct {
	name string
	run  func(ctx context.Context, s State) (State, error)
}

// Pipeline executes runs. It holds no per-run state.
type Pipeline struct {
	analyzer Analyzer
	alerts   AlertSource
	flights  FlightResolver
	reasoner Reasoner
	limits   compact.Limits
	timeout  time.Duration
	observer Observer
	logger   *slog.Logger
	stages   []stage
}

// New creates a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		analyzer: cfg.Analyzer,
		alerts:   cfg.Alerts,
		flights:  cfg.Flights,
		reasoner: cfg.Reasoner,
		limits:   cfg.Limits,
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.stages = []stage{
		{name: StageOps, run: p.runOps},
		{name: StageTraveler, run: p.runTraveler},
	}
	return p
}

// Ask runs the pipeline and returns the caller-facing result.
func (p *Pipeline) Ask(ctx context.Context, in Input) (*Result, error) {
	s, err := p.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.Result(), nil
}

// Run executes every stage in order and returns the final state. On
// failure the returned state holds what the completed stages wrote,
// but no partial Result should be built from it.
func (p *Pipeline) Run(ctx context.Context, in Input) (State, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return State{}, fmt.Errorf("generate run id: %w", err)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	state := State{
		RunID:    id.String(),
		Region:   in.Region,
		Callsign: airspace.NormalizeCallsign(in.Callsign),
		Question: in.Question,
	}
	log := p.logger.With("run_id", state.RunID)
	log.Info("pipeline run started", "region", state.Region, "callsign", state.Callsign)

	start := time.Now()
	for _, st := range p.stages {
		stageStart := time.Now()
		next, err := st.run(ctx, state)
		elapsed := time.Since(stageStart)
		p.observer.ObserveStage(st.name, elapsed, err)

		if err != nil {
			err = fmt.Errorf("%s stage: %w", st.name, err)
			p.observer.ObserveRun(err, time.Since(start))
			log.Error("pipeline run failed", "stage", st.name, "error", err, "elapsed", elapsed)
			return state, err
		}
		log.Debug("stage complete", "stage", st.name, "elapsed", elapsed)
		state = next.advance(st.name)
	}

	p.observer.ObserveRun(nil, time.Since(start))
	log.Info("pipeline run finished", "stages", state.Trace, "elapsed", time.Since(start).Round(time.Millisecond))
	return state, nil
}

func (p *Pipeline) runOps(ctx context.Context, s State) (State, error) {
	a, err := p.analyzer.Analyze(ctx, s.Region)
	if err != nil {
		return s, err
	}
	p.observer.ObserveAnalysis(a)

	alerts, err := p.alerts.Alerts(ctx)
	if err != nil {
		return s, err
	}

	payload := compact.Analysis(a, alerts, p.limits)
	analysisJSON, err := json.Marshal(payload)
	if err != nil {
		return s, fmt.Errorf("encode analysis: %w", err)
	}
	alertsJSON, err := json.Marshal(compact.AlertsPayload{Alerts: payload.Alerts})
	if err != nil {
		return s, fmt.Errorf("encode alerts: %w", err)
	}

	report, err := p.complete(ctx, Request{
		RunID:    s.RunID,
		Stage:    StageOps,
		Region:   s.Region,
		Callsign: s.Callsign,
		System:   prompts.OpsSystemPrompt(),
		User:     prompts.OpsUserPrompt(s.Region, s.Question, string(analysisJSON), string(alertsJSON)),
	})
	if err != nil {
		return s, err
	}

	handoff, found := ExtractHandoff(report)
	if !found {
		p.logger.Warn("ops report has no HANDOFF section, forwarding full report",
			"run_id", s.RunID, "report_len", len(report))
	}

	s.OpsReport = report
	s.OpsStructured = a
	s.Alerts = alerts
	s.LastUpdated = a.LastUpdated
	s.Handoff = handoff
	return s, nil
}

func (p *Pipeline) runTraveler(ctx context.Context, s State) (State, error) {
	fc, err := p.flights.FlightContext(ctx, s.Callsign)
	if err != nil {
		return s, err
	}

	flight := compact.Flight(fc)
	flightJSON, err := json.Marshal(flight)
	if err != nil {
		return s, fmt.Errorf("encode flight context: %w", err)
	}

	reply, err := p.complete(ctx, Request{
		RunID:    s.RunID,
		Stage:    StageTraveler,
		Region:   s.Region,
		Callsign: s.Callsign,
		System:   prompts.TravelerSystemPrompt(),
		User:     prompts.TravelerUserPrompt(s.Callsign, s.Question, s.Handoff, string(flightJSON)),
	})
	if err != nil {
		return s, err
	}

	s.TravelerResponse = reply
	s.FlightContext = &flight
	return s, nil
}

// complete calls the reasoner and classifies failures as upstream.
// An empty completion is a failure: every stage must produce text.
func (p *Pipeline) complete(ctx context.Context, req Request) (string, error) {
	out, err := p.reasoner.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", airspace.ErrUpstream, err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: empty %s completion", airspace.ErrUpstream, req.Stage)
	}
	return out, nil
}
