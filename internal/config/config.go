// Package config handles airspace-copilot configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Snapshot storage drivers.
const (
	DriverDir = "dir"
	DriverS3  = "s3"
)

// Model providers.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/airspace-copilot/config.yaml,
// /etc/airspace-copilot/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "airspace-copilot", "config.yaml"))
	}

	paths = append(paths, "/etc/airspace-copilot/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all airspace-copilot configuration.
type Config struct {
	Listen        ListenConfig            `yaml:"listen"`
	Snapshots     SnapshotsConfig         `yaml:"snapshots"`
	Models        ModelsConfig            `yaml:"models"`
	Anthropic     AnthropicConfig         `yaml:"anthropic"`
	OpenAI        OpenAIConfig            `yaml:"openai"`
	Pipeline      PipelineConfig          `yaml:"pipeline"`
	MQTT          MQTTConfig              `yaml:"mqtt"`
	Metrics       MetricsConfig           `yaml:"metrics"`
	Pricing       map[string]PricingEntry `yaml:"pricing"`
	DataDir       string                  `yaml:"data_dir"`
	DefaultRegion string                  `yaml:"default_region"`
	LogLevel      string                  `yaml:"log_level"`
	LogFormat     string                  `yaml:"log_format"` // text or json
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// SnapshotsConfig selects where region snapshots and alerts are read from.
type SnapshotsConfig struct {
	Driver     string   `yaml:"driver"` // dir (default) or s3
	Dir        string   `yaml:"dir"`
	AlertsFile string   `yaml:"alerts_file"`
	S3         S3Config `yaml:"s3"`
}

// S3Config locates snapshot objects in a bucket. Endpoint and PathStyle
// support S3-compatible stores such as MinIO.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AlertsKey string `yaml:"alerts_key"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// ModelsConfig picks the provider and per-stage models.
type ModelsConfig struct {
	Provider      string  `yaml:"provider"` // ollama, anthropic, openai
	OpsModel      string  `yaml:"ops_model"`
	TravelerModel string  `yaml:"traveler_model"`
	OllamaURL     string  `yaml:"ollama_url"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// OpenAIConfig defines an OpenAI-compatible endpoint. The default base
// URL is Groq's.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// PipelineConfig bounds a pipeline run.
type PipelineConfig struct {
	MaxAnomalies int `yaml:"max_anomalies"`
	MaxAlerts    int `yaml:"max_alerts"`
	TimeoutSec   int `yaml:"timeout_sec"`
}

// MQTTConfig defines the optional sensor publisher. Publishing is
// disabled when Broker is empty.
type MQTTConfig struct {
	Broker             string   `yaml:"broker"` // e.g. mqtt://homeassistant.local:1883
	Username           string   `yaml:"username"`
	Password           string   `yaml:"password"`
	DeviceName         string   `yaml:"device_name"`
	DiscoveryPrefix    string   `yaml:"discovery_prefix"`
	PublishIntervalSec int      `yaml:"publish_interval_sec"`
	Regions            []string `yaml:"regions"` // empty = all regions
}

// Configured reports whether an MQTT broker has been set.
func (c MQTTConfig) Configured() bool {
	return c.Broker != ""
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PricingEntry is a model's cost in USD per million tokens.
type PricingEntry struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// Load reads configuration from a YAML file, expands environment
// variables, fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration that runs against ./data with a
// local Ollama model.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Snapshots.Driver == "" {
		c.Snapshots.Driver = DriverDir
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Snapshots.Dir == "" {
		c.Snapshots.Dir = filepath.Join(c.DataDir, "snapshots")
	}
	if c.Snapshots.AlertsFile == "" {
		c.Snapshots.AlertsFile = filepath.Join(c.DataDir, "alerts.json")
	}
	if c.Models.Provider == "" {
		c.Models.Provider = ProviderOllama
	}
	if c.Models.OpsModel == "" {
		c.Models.OpsModel = defaultModel(c.Models.Provider)
	}
	if c.Models.TravelerModel == "" {
		c.Models.TravelerModel = c.Models.OpsModel
	}
	if c.Models.Temperature == 0 {
		c.Models.Temperature = 0.2
	}
	if c.Pipeline.MaxAnomalies <= 0 {
		c.Pipeline.MaxAnomalies = 15
	}
	if c.Pipeline.MaxAlerts <= 0 {
		c.Pipeline.MaxAlerts = 10
	}
	if c.Pipeline.TimeoutSec <= 0 {
		c.Pipeline.TimeoutSec = 120
	}
	if c.MQTT.DeviceName == "" {
		c.MQTT.DeviceName = "airspace-copilot"
	}
	if c.MQTT.DiscoveryPrefix == "" {
		c.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if c.MQTT.PublishIntervalSec <= 0 {
		c.MQTT.PublishIntervalSec = 60
	}
	if c.DefaultRegion == "" {
		c.DefaultRegion = "region1"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderOpenAI:
		return "llama-3.3-70b-versatile"
	default:
		return "qwen3:4b"
	}
}

// Validate checks the configuration for inconsistent or missing values.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	switch c.Snapshots.Driver {
	case DriverDir:
		if c.Snapshots.Dir == "" {
			errs = append(errs, errors.New("snapshots.dir is required for the dir driver"))
		}
	case DriverS3:
		if c.Snapshots.S3.Bucket == "" {
			errs = append(errs, errors.New("snapshots.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("snapshots.driver %q is not one of dir, s3", c.Snapshots.Driver))
	}

	switch c.Models.Provider {
	case ProviderOllama:
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			errs = append(errs, errors.New("anthropic.api_key is required for the anthropic provider"))
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("models.provider %q is not one of ollama, anthropic, openai", c.Models.Provider))
	}

	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port %d out of range", c.Listen.Port))
	}
	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		errs = append(errs, fmt.Errorf("models.temperature %.2f out of range [0, 2]", c.Models.Temperature))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLogFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
