package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindConfig_Explicit(t *testing.T) {
	path := writeConfig(t, "listen:\n  port: 9999\n")

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	if _, err := FindConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("listen:\n  port: 8080\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Listen.Port != 8080 {
		t.Errorf("Listen.Port = %d, want 8080", cfg.Listen.Port)
	}
	if cfg.Snapshots.Driver != DriverDir || cfg.Snapshots.Dir != filepath.Join("data", "snapshots") {
		t.Errorf("Snapshots = %+v", cfg.Snapshots)
	}
	if cfg.Pipeline.MaxAnomalies != 15 || cfg.Pipeline.MaxAlerts != 10 {
		t.Errorf("Pipeline = %+v, want 15/10 caps", cfg.Pipeline)
	}
	if cfg.DefaultRegion != "region1" {
		t.Errorf("DefaultRegion = %q", cfg.DefaultRegion)
	}
	if cfg.Models.TravelerModel != cfg.Models.OpsModel {
		t.Errorf("TravelerModel = %q, want ops model %q", cfg.Models.TravelerModel, cfg.Models.OpsModel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("AIRSPACE_TEST_GROQ_KEY", "gsk-secret")
	path := writeConfig(t, "models:\n  provider: openai\nopenai:\n  api_key: ${AIRSPACE_TEST_GROQ_KEY}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.OpenAI.APIKey != "gsk-secret" {
		t.Errorf("api_key = %q, want %q", cfg.OpenAI.APIKey, "gsk-secret")
	}
	if cfg.Models.OpsModel != "llama-3.3-70b-versatile" {
		t.Errorf("OpsModel = %q, want provider default", cfg.Models.OpsModel)
	}
}

func TestLoad_DataDirDrivesPaths(t *testing.T) {
	path := writeConfig(t, "data_dir: /srv/airspace\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Snapshots.Dir != "/srv/airspace/snapshots" {
		t.Errorf("Snapshots.Dir = %q", cfg.Snapshots.Dir)
	}
	if cfg.Snapshots.AlertsFile != "/srv/airspace/alerts.json" {
		t.Errorf("Snapshots.AlertsFile = %q", cfg.Snapshots.AlertsFile)
	}
}

func TestLoad_Pricing(t *testing.T) {
	path := writeConfig(t, `
pricing:
  claude-sonnet-4-20250514:
    input_per_million: 3
    output_per_million: 15
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := cfg.Pricing["claude-sonnet-4-20250514"]; got.OutputPerMillion != 15 {
		t.Errorf("pricing = %+v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"s3 without bucket", func(c *Config) { c.Snapshots.Driver = DriverS3 }, "snapshots.s3.bucket"},
		{"unknown driver", func(c *Config) { c.Snapshots.Driver = "ftp" }, "snapshots.driver"},
		{"anthropic without key", func(c *Config) { c.Models.Provider = ProviderAnthropic }, "anthropic.api_key"},
		{"unknown provider", func(c *Config) { c.Models.Provider = "bard" }, "models.provider"},
		{"bad port", func(c *Config) { c.Listen.Port = 70000 }, "listen.port"},
		{"bad temperature", func(c *Config) { c.Models.Temperature = 3 }, "models.temperature"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidFails(t *testing.T) {
	path := writeConfig(t, "snapshots:\n  driver: s3\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load should reject s3 driver without bucket")
	}
}
