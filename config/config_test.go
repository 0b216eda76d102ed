package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-site-crawler/models"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Seed = "http://example.test/"
	depth := 1
	cfg.Depth = &depth
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty seed",
			mutate: func(cfg *Config) {
				cfg.Seed = ""
			},
			wantErr: "seed URL",
		},
		{
			name: "seed without host",
			mutate: func(cfg *Config) {
				cfg.Seed = "http://"
			},
			wantErr: "seed URL",
		},
		{
			name: "seed with unsupported scheme",
			mutate: func(cfg *Config) {
				cfg.Seed = "ftp://example.test/"
			},
			wantErr: "http or https",
		},
		{
			name: "no mode",
			mutate: func(cfg *Config) {
				cfg.Depth = nil
			},
			wantErr: "one of depth or target count",
		},
		{
			name: "both modes",
			mutate: func(cfg *Config) {
				target := 5
				cfg.TargetCount = &target
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "negative depth",
			mutate: func(cfg *Config) {
				depth := -1
				cfg.Depth = &depth
			},
			wantErr: "depth",
		},
		{
			name: "zero target count",
			mutate: func(cfg *Config) {
				target := 0
				cfg.Depth = nil
				cfg.TargetCount = &target
			},
			wantErr: "target count",
		},
		{
			name: "zero concurrency",
			mutate: func(cfg *Config) {
				cfg.MaxConcurrency = 0
			},
			wantErr: "max concurrency",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "unknown dedup policy",
			mutate: func(cfg *Config) {
				cfg.DedupPolicy = "url"
			},
			wantErr: "dedup policy",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidConfigPasses(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config should validate, got %v", err)
	}
	if cfg.Mode() != models.ModeDepth {
		t.Fatalf("mode = %q, want %q", cfg.Mode(), models.ModeDepth)
	}
	if cfg.MaxConcurrency != 100 {
		t.Fatalf("max concurrency = %d, want 100", cfg.MaxConcurrency)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawler.yaml")
	doc := `seed: https://example.test/start
target_count: 25
max_concurrency: 8
timeout: 5s
robots_cache_size: 0
format: json
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("load file: %v", err)
	}

	if cfg.Seed != "https://example.test/start" {
		t.Fatalf("seed = %q", cfg.Seed)
	}
	if cfg.TargetCount == nil || *cfg.TargetCount != 25 {
		t.Fatalf("target count = %v, want 25", cfg.TargetCount)
	}
	if cfg.Mode() != models.ModeCount {
		t.Fatalf("mode = %q, want %q", cfg.Mode(), models.ModeCount)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.RobotsCacheSize != 0 {
		t.Fatalf("robots cache size = %d, want 0", cfg.RobotsCacheSize)
	}
	if cfg.OutputFile != "crawler.csv" {
		t.Fatalf("output file = %q, want default kept", cfg.OutputFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate, got %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("max_concurrency: [1, 2"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := cfg.LoadFile(path); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
