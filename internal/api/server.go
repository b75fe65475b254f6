// Package api implements the airspace copilot HTTP API: read access to
// region snapshots, analyses, flights, and alerts, plus the two-stage
// ask pipeline.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nugget/airspace-copilot/internal/airspace"
	"github.com/nugget/airspace-copilot/internal/analysis"
	"github.com/nugget/airspace-copilot/internal/buildinfo"
	"github.com/nugget/airspace-copilot/internal/connwatch"
	"github.com/nugget/airspace-copilot/internal/locator"
	"github.com/nugget/airspace-copilot/internal/pipeline"
	"github.com/nugget/airspace-copilot/internal/usage"
)

// maxAskBody bounds the POST /v1/ask request body.
const maxAskBody = 64 << 10

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Snapshots is the read side of the snapshot store.
type Snapshots interface {
	Regions(ctx context.Context) ([]string, error)
	Snapshot(ctx context.Context, region string) (*airspace.Snapshot, error)
	Alerts(ctx context.Context) (*airspace.AlertsResponse, error)
}

// Analyzer produces the analysis for a region.
type Analyzer interface {
	Analyze(ctx context.Context, region string) (*analysis.Analysis, error)
}

// Locator finds an aircraft by callsign.
type Locator interface {
	FindByCallsign(ctx context.Context, callsign string) (*locator.Match, error)
}

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (pipeline.State, error)
}

// UsageReporter summarizes recorded token usage.
type UsageReporter interface {
	Summary(ctx context.Context, start, end time.Time) (*usage.Summary, error)
	SummaryByStage(ctx context.Context, start, end time.Time) (map[string]*usage.Summary, error)
	SummaryByModel(ctx context.Context, start, end time.Time) (map[string]*usage.Summary, error)
}

// DependencyReporter reports the reachability of external services.
type DependencyReporter interface {
	Status() []connwatch.Status
	Healthy() bool
}

// Config wires a Server. Snapshots, Analyzer, Locator, and Pipeline are
// required; Usage and Metrics are optional and their routes answer 404
// when unset. Without Dependencies, /health reports only liveness.
type Config struct {
	Address       string
	Port          int
	DefaultRegion string
	Snapshots     Snapshots
	Analyzer      Analyzer
	Locator       Locator
	Pipeline      Runner
	Usage         UsageReporter
	Metrics       http.Handler
	Dependencies  DependencyReporter
	Logger        *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	cfg    Config
	logger *slog.Logger
	server *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: logger}
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/version", s.handleVersion)

	mux.HandleFunc("GET /v1/regions", s.handleRegions)
	mux.HandleFunc("GET /v1/regions/{region}", s.handleRegionSnapshot)
	mux.HandleFunc("GET /v1/regions/{region}/analysis", s.handleRegionAnalysis)
	mux.HandleFunc("GET /v1/flights/{callsign}", s.handleFlight)
	mux.HandleFunc("GET /v1/alerts", s.handleAlerts)
	mux.HandleFunc("GET /v1/tools", s.handleTools)

	mux.HandleFunc("POST /v1/ask", s.handleAsk)
	mux.HandleFunc("GET /v1/usage", s.handleUsage)

	if s.cfg.Metrics != nil {
		mux.Handle("GET /metrics", s.cfg.Metrics)
	}

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. It returns when the server stops;
// [http.ErrServerClosed] after Shutdown is not an error.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Ask runs two reasoning calls.
		WriteTimeout: 5 * time.Minute,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	addr := s.cfg.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.cfg.Port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "airspace-copilot",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

// handleHealth always answers 200 while the process is serving. A down
// dependency turns the status to "degraded" without failing the probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"default_region": s.cfg.DefaultRegion,
	}
	if deps := s.cfg.Dependencies; deps != nil {
		resp["dependencies"] = deps.Status()
		if !deps.Healthy() {
			resp["status"] = "degraded"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.cfg.Snapshots.Regions(r.Context())
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string][]string{"regions": regions}, s.logger)
}

func (s *Server) handleRegionSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.cfg.Snapshots.Snapshot(r.Context(), r.PathValue("region"))
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, snap, s.logger)
}

func (s *Server) handleRegionAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.cfg.Analyzer.Analyze(r.Context(), r.PathValue("region"))
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, a, s.logger)
}

func (s *Server) handleFlight(w http.ResponseWriter, r *http.Request) {
	callsign := r.PathValue("callsign")
	match, err := s.cfg.Locator.FindByCallsign(r.Context(), callsign)
	if errors.Is(err, airspace.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound,
			fmt.Sprintf("callsign %q not found in any region, please verify the callsign", callsign))
		return
	}
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, match, s.logger)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.cfg.Snapshots.Alerts(r.Context())
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, alerts, s.logger)
}

// AskRequest is the body of POST /v1/ask.
type AskRequest = pipeline.Input

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBody)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Region == "" {
		req.Region = s.cfg.DefaultRegion
	}
	if req.Callsign == "" {
		s.errorResponse(w, http.StatusBadRequest, "callsign is required")
		return
	}

	state, err := s.cfg.Pipeline.Run(r.Context(), req)
	if state.RunID != "" {
		w.Header().Set("X-Run-ID", state.RunID)
	}
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}

	result := state.Result()
	if r.URL.Query().Get("format") == "html" {
		s.writeHTML(w, result)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result, s.logger)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Usage == nil {
		s.errorResponse(w, http.StatusNotFound, "usage tracking is not enabled")
		return
	}

	end := time.Now()
	start := end.Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			s.errorResponse(w, http.StatusBadRequest, "since must be a positive duration such as 24h")
			return
		}
		start = end.Add(-d)
	}

	ctx := r.Context()
	total, err := s.cfg.Usage.Summary(ctx, start, end)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	byStage, err := s.cfg.Usage.SummaryByStage(ctx, start, end)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	byModel, err := s.cfg.Usage.SummaryByModel(ctx, start, end)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"start":    start.UTC().Format(time.RFC3339),
		"end":      end.UTC().Format(time.RFC3339),
		"total":    total,
		"by_stage": byStage,
		"by_model": byModel,
	}, s.logger)
}
