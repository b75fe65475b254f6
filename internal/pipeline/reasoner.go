package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nugget/airspace-copilot/internal/config"
	"github.com/nugget/airspace-copilot/internal/llm"
	"github.com/nugget/airspace-copilot/internal/usage"
)

// Request is one reasoning call: role-tagged instructions plus the
// data message, and the run identity for accounting.
type Request struct {
	RunID    string
	Stage    string
	Region   string
	Callsign string
	System   string
	User     string
}

// Reasoner turns a prompt into text. Implementations own any retry
// policy; the pipeline calls Complete exactly once per stage.
type Reasoner interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// UsageRecorder persists token usage.
type UsageRecorder interface {
	Record(ctx context.Context, rec usage.Record) error
}

// TokenObserver receives per-call token counts.
type TokenObserver interface {
	ObserveTokens(stage, model string, input, output int)
}

// LLMReasonerConfig configures an LLMReasoner. Models maps a stage
// name to its model; stages without an entry use DefaultModel.
type LLMReasonerConfig struct {
	Client       llm.Client
	Provider     string
	DefaultModel string
	Models       map[string]string
	Options      llm.Options
	Usage        UsageRecorder
	Pricing      map[string]config.PricingEntry
	Tokens       TokenObserver
	Logger       *slog.Logger
}

// LLMReasoner is a Reasoner backed by an llm.Client.
type LLMReasoner struct {
	cfg    LLMReasonerConfig
	logger *slog.Logger
}

// NewLLMReasoner creates an LLMReasoner.
func NewLLMReasoner(cfg LLMReasonerConfig) *LLMReasoner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMReasoner{cfg: cfg, logger: logger}
}

// ModelFor returns the model used for stage.
func (r *LLMReasoner) ModelFor(stage string) string {
	if m, ok := r.cfg.Models[stage]; ok && m != "" {
		return m
	}
	return r.cfg.DefaultModel
}

// Complete sends the request to the stage's model. Usage is recorded
// after a successful call; a recording failure is logged, not returned.
func (r *LLMReasoner) Complete(ctx context.Context, req Request) (string, error) {
	model := r.ModelFor(req.Stage)
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: req.System},
		{Role: llm.RoleUser, Content: req.User},
	}

	start := time.Now()
	resp, err := r.cfg.Client.Chat(ctx, model, messages, r.cfg.Options)
	if err != nil {
		return "", err
	}

	r.logger.Debug("reasoning call complete",
		"run_id", req.RunID,
		"stage", req.Stage,
		"model", model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if r.cfg.Tokens != nil {
		r.cfg.Tokens.ObserveTokens(req.Stage, model, resp.InputTokens, resp.OutputTokens)
	}
	if r.cfg.Usage != nil {
		rec := usage.Record{
			RunID:        req.RunID,
			Stage:        req.Stage,
			Region:       req.Region,
			Callsign:     req.Callsign,
			Model:        model,
			Provider:     r.cfg.Provider,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			CostUSD:      usage.ComputeCost(model, resp.InputTokens, resp.OutputTokens, r.cfg.Pricing),
		}
		if err := r.cfg.Usage.Record(ctx, rec); err != nil {
			r.logger.Warn("failed to record usage", "run_id", req.RunID, "stage", req.Stage, "error", err)
		}
	}

	return resp.Text(), nil
}
