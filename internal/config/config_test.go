package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}

	if cfg.Extraction.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.Extraction.Provider)
	}

	if cfg.Dedup.PrimaryThreshold != 0.85 {
		t.Errorf("expected primary threshold 0.85, got %v", cfg.Dedup.PrimaryThreshold)
	}
	if cfg.Dedup.VenueTitleThreshold != 0.5 {
		t.Errorf("expected venue title threshold 0.5, got %v", cfg.Dedup.VenueTitleThreshold)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
extraction:
  provider: gemini
dedup:
  primary_threshold: 0.9
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Extraction.Provider != "gemini" {
		t.Errorf("expected provider 'gemini', got %q", cfg.Extraction.Provider)
	}
	if cfg.Dedup.PrimaryThreshold != 0.9 {
		t.Errorf("expected primary threshold 0.9, got %v", cfg.Dedup.PrimaryThreshold)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Extraction.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.Extraction.OllamaURL)
	}
	if cfg.Dedup.VenueTitleThreshold != 0.5 {
		t.Errorf("expected default venue title threshold, got %v", cfg.Dedup.VenueTitleThreshold)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
	if cfg.LedgerPath() != "/custom/path/eventscout.db" {
		t.Errorf("unexpected ledger path %q", cfg.LedgerPath())
	}
}
