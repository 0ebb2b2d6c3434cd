package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"voxcrawl/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "voxcrawl", "state")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "voxcrawl-output") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Source.BaseURL != "https://wiki.leagueoflegends.com" {
		t.Fatalf("unexpected base url: %q", cfg.Source.BaseURL)
	}
	if cfg.Audio.SampleRate != 22050 {
		t.Fatalf("unexpected sample rate: %d", cfg.Audio.SampleRate)
	}
	if cfg.Workflow.SuccessRatio != 0.5 {
		t.Fatalf("unexpected success ratio: %v", cfg.Workflow.SuccessRatio)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.WorkDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "voxcrawl.toml")

	type payload struct {
		Source struct {
			BaseURL      string  `toml:"base_url"`
			RequestDelay float64 `toml:"request_delay"`
		} `toml:"source"`
		Audio struct {
			SampleRate int `toml:"sample_rate"`
		} `toml:"audio"`
		Workflow struct {
			SuccessRatio float64 `toml:"success_ratio"`
			RetryFailed  bool    `toml:"retry_failed"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Source.BaseURL = "https://example.com/wiki/"
	custom.Source.RequestDelay = 1.5
	custom.Audio.SampleRate = 16000
	custom.Workflow.SuccessRatio = 0.75
	custom.Workflow.RetryFailed = true
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Source.BaseURL != "https://example.com/wiki" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Source.BaseURL)
	}
	if cfg.Source.RequestDelay != 1.5 {
		t.Fatalf("expected request delay 1.5, got %v", cfg.Source.RequestDelay)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("expected sample rate 16000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Workflow.SuccessRatio != 0.75 {
		t.Fatalf("expected success ratio 0.75, got %v", cfg.Workflow.SuccessRatio)
	}
	if !cfg.Workflow.RetryFailed {
		t.Fatal("expected retry_failed true")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "wiki.leagueoflegends.com") {
		t.Fatalf("sample config missing default base url: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Audio.SampleRate != 22050 {
		t.Fatalf("unexpected sample rate in sample config: %d", cfg.Audio.SampleRate)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Source.BaseURL = "ftp://example.com"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-http base url")
	}

	cfg = config.Default()
	cfg.Audio.SampleRate = 4000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for low sample rate")
	}

	cfg = config.Default()
	cfg.Audio.TargetRMSDb = 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for positive RMS target")
	}

	cfg = config.Default()
	cfg.Workflow.SuccessRatio = 1.2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range success ratio")
	}

	cfg = config.Default()
	cfg.Paths.WorkDir = cfg.Paths.OutputDir
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when work dir equals output dir")
	}
}
