package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nugget/airspace-copilot/internal/analysis"
	"github.com/nugget/airspace-copilot/internal/compact"
	"github.com/nugget/airspace-copilot/internal/config"
	"github.com/nugget/airspace-copilot/internal/llm"
	"github.com/nugget/airspace-copilot/internal/locator"
	"github.com/nugget/airspace-copilot/internal/metrics"
	"github.com/nugget/airspace-copilot/internal/mqtt"
	"github.com/nugget/airspace-copilot/internal/pipeline"
	"github.com/nugget/airspace-copilot/internal/snapshot"
	"github.com/nugget/airspace-copilot/internal/traveler"
	"github.com/nugget/airspace-copilot/internal/usage"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *snapshot.Store
	engine   *analysis.Engine
	locator  *locator.Locator
	resolver *traveler.Resolver
	llm      llm.Client
	pipeline *pipeline.Pipeline
	usage    *usage.Store     // nil when the ledger could not be opened
	metrics  *metrics.Metrics // nil when disabled
	tokens   *mqtt.DailyTokens
}

// setup loads configuration and wires the components. The returned
// function releases resources and must be called when done.
func setup(ctx context.Context, logw io.Writer, configPath string) (*app, func(), error) {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := cfg.NewLogger(logw)
	if cfgPath == "" {
		logger.Debug("no config file found, using defaults")
	} else {
		logger.Debug("config loaded", "path", cfgPath)
	}

	src, err := newSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store := snapshot.NewStore(src, logger.With("component", "snapshot"))
	engine := analysis.NewEngine(store)
	loc := locator.New(store, logger.With("component", "locator"))
	resolver := traveler.NewResolver(loc, logger.With("component", "traveler"))

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		engine:   engine,
		locator:  loc,
		resolver: resolver,
		llm:      createLLMClient(cfg, logger),
		tokens:   mqtt.NewDailyTokens(nil),
	}
	closeFn := func() {}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Warn("usage ledger disabled, data directory unavailable", "dir", cfg.DataDir, "error", err)
	} else if st, err := usage.NewStore(filepath.Join(cfg.DataDir, "usage.db")); err != nil {
		logger.Warn("usage ledger disabled", "error", err)
	} else {
		a.usage = st
		closeFn = func() {
			if err := st.Close(); err != nil {
				logger.Warn("close usage ledger", "error", err)
			}
		}
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}

	reasonerCfg := pipeline.LLMReasonerConfig{
		Client:       a.llm,
		Provider:     cfg.Models.Provider,
		DefaultModel: cfg.Models.OpsModel,
		Models: map[string]string{
			pipeline.StageOps:      cfg.Models.OpsModel,
			pipeline.StageTraveler: cfg.Models.TravelerModel,
		},
		Options: llm.Options{
			Temperature: cfg.Models.Temperature,
			MaxTokens:   cfg.Models.MaxTokens,
		},
		Pricing: cfg.Pricing,
		Tokens:  a.tokenObservers(),
		Logger:  logger.With("component", "reasoner"),
	}
	if a.usage != nil {
		reasonerCfg.Usage = a.usage
	}

	pipeCfg := pipeline.Config{
		Analyzer: engine,
		Alerts:   store,
		Flights:  resolver,
		Reasoner: pipeline.NewLLMReasoner(reasonerCfg),
		Limits: compact.Limits{
			Anomalies: cfg.Pipeline.MaxAnomalies,
			Alerts:    cfg.Pipeline.MaxAlerts,
		},
		Timeout: time.Duration(cfg.Pipeline.TimeoutSec) * time.Second,
		Logger:  logger.With("component", "pipeline"),
	}
	if a.metrics != nil {
		pipeCfg.Observer = a.metrics
	}
	a.pipeline = pipeline.New(pipeCfg)

	return a, closeFn, nil
}

// tokenFanout forwards token counts to several observers.
type tokenFanout []pipeline.TokenObserver

func (f tokenFanout) ObserveTokens(stage, model string, input, output int) {
	for _, o := range f {
		o.ObserveTokens(stage, model, input, output)
	}
}

func (a *app) tokenObservers() pipeline.TokenObserver {
	f := tokenFanout{a.tokens}
	if a.metrics != nil {
		f = append(f, a.metrics)
	}
	return f
}

// newSource builds the snapshot source for the configured driver.
func newSource(ctx context.Context, cfg *config.Config) (snapshot.Source, error) {
	switch cfg.Snapshots.Driver {
	case config.DriverS3:
		s3cfg := cfg.Snapshots.S3
		src, err := snapshot.NewS3Source(ctx, snapshot.S3Config{
			Bucket:    s3cfg.Bucket,
			Prefix:    s3cfg.Prefix,
			AlertsKey: s3cfg.AlertsKey,
			Region:    s3cfg.Region,
			Endpoint:  s3cfg.Endpoint,
			PathStyle: s3cfg.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 snapshot source: %w", err)
		}
		return src, nil
	default:
		return snapshot.NewDirSource(cfg.Snapshots.Dir, cfg.Snapshots.AlertsFile), nil
	}
}

// createLLMClient builds a multi-provider client. Ollama is always
// registered and is the fallback; hosted providers are added when
// their credentials are configured. Both stage models are mapped to
// the selected provider.
func createLLMClient(cfg *config.Config, logger *slog.Logger) llm.Client {
	ollama := llm.NewOllamaClient(cfg.Models.OllamaURL, logger)
	multi := llm.NewMultiClient(ollama)
	multi.AddProvider(config.ProviderOllama, ollama)

	if cfg.Anthropic.APIKey != "" {
		multi.AddProvider(config.ProviderAnthropic, llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Models.OpsModel, logger))
	}
	if cfg.OpenAI.APIKey != "" {
		multi.AddProvider(config.ProviderOpenAI, llm.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, logger))
	}

	multi.AddModel(cfg.Models.OpsModel, cfg.Models.Provider)
	multi.AddModel(cfg.Models.TravelerModel, cfg.Models.Provider)

	logger.Debug("LLM client initialized",
		"provider", cfg.Models.Provider,
		"ops_model", cfg.Models.OpsModel,
		"traveler_model", cfg.Models.TravelerModel,
	)
	return multi
}
