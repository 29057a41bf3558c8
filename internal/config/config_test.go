package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigParses(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected default feeds")
	}
	for _, f := range cfg.Sources.Feeds {
		if f.ID == "" || f.URL == "" || f.Tier == "" {
			t.Errorf("incomplete feed config: %+v", f)
		}
	}
	if cfg.Clustering.WindowMinutes != 30 || cfg.Clustering.CooldownMinutes != 30 {
		t.Errorf("unexpected clustering defaults: %+v", cfg.Clustering)
	}
	if cfg.Clustering.SimilarityThreshold != 0.7 {
		t.Errorf("expected threshold 0.7, got %f", cfg.Clustering.SimilarityThreshold)
	}
	if cfg.Schedule.MorningDigest == "" || cfg.Schedule.EveningDigest == "" {
		t.Errorf("expected digest schedules: %+v", cfg.Schedule)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := parse([]byte("{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Clustering.WindowMinutes != 30 {
		t.Errorf("expected default window 30, got %d", cfg.Clustering.WindowMinutes)
	}
	if cfg.Ranking.Preset != "live-feed" {
		t.Errorf("expected default preset live-feed, got %q", cfg.Ranking.Preset)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default level INFO, got %q", cfg.Logging.Level)
	}
}

func TestParseOverrides(t *testing.T) {
	yaml := []byte(`
clustering:
  window_minutes: 45
  similarity_threshold: 0.8
ranking:
  preset: impact-first
companies:
  テスト株式会社: "1234"
`)
	cfg, err := parse(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Clustering.Window() != 45*time.Minute {
		t.Errorf("expected 45m window, got %v", cfg.Clustering.Window())
	}
	if cfg.Clustering.SimilarityThreshold != 0.8 {
		t.Errorf("expected threshold 0.8, got %f", cfg.Clustering.SimilarityThreshold)
	}
	if cfg.Ranking.Preset != "impact-first" {
		t.Errorf("expected preset override, got %q", cfg.Ranking.Preset)
	}
	if cfg.Companies["テスト株式会社"] != "1234" {
		t.Errorf("expected company mapping, got %v", cfg.Companies)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
}

func TestResolveConfigPathExplicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("{}"), 0o644)

	got, err := ResolveConfigPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != path {
		t.Errorf("expected %q, got %q", path, got)
	}

	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit path")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	if cfg.GetDataDir() == "" {
		t.Error("expected XDG fallback")
	}

	cfg.Output.DataDir = "/tmp/kaiji-data"
	if cfg.GetDataDir() != "/tmp/kaiji-data" {
		t.Errorf("expected explicit dir, got %q", cfg.GetDataDir())
	}
}
