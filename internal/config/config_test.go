package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Provider != "google_ai" {
		t.Errorf("Provider = %q, want google_ai", cfg.LLM.Provider)
	}
	if cfg.LLM.TimeoutSecs != 60 {
		t.Errorf("TimeoutSecs = %d, want 60", cfg.LLM.TimeoutSecs)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: /tmp/test.db
llm:
  provider: openai
  model: gpt-4o
  timeout_secs: 30
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Path = %q", cfg.Database.Path)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.LLM.TimeoutSecs != 30 {
		t.Errorf("TimeoutSecs = %d", cfg.LLM.TimeoutSecs)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Format = %q", cfg.Logging.Format)
	}
	// Unset fields still get defaults.
	if cfg.LLM.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.LLM.MaxRetries)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("llm: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
