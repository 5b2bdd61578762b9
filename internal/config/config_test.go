// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration must validate, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"negative threads", func(c *Config) { c.Database.Threads = -1 }},
		{"zero candidate limit", func(c *Config) { c.Recommend.CandidateLimit = 0 }},
		{"zero result limit", func(c *Config) { c.Recommend.ResultLimit = 0 }},
		{"zero worker concurrency", func(c *Config) { c.Worker.Concurrency = 0 }},
		{"zero stale threshold", func(c *Config) { c.Worker.StaleAfter = 0 }},
		{"zero reap interval", func(c *Config) { c.Worker.ReapInterval = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero rate limit", func(c *Config) { c.Server.RequestsPerMinute = 0 }},
		{"bad half life", func(c *Config) { c.Recommend.Weights.HalfLifeDays = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8484 {
		t.Errorf("port = %d, want default 8484", cfg.Server.Port)
	}
	if cfg.Recommend.Weights.HalfLifeDays != 180 {
		t.Errorf("half life = %f, want default 180", cfg.Recommend.Weights.HalfLifeDays)
	}
	if !cfg.Recommend.Decay {
		t.Error("decay should default to true")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CINEMATCH_SERVER_PORT", "9000")
	t.Setenv("CINEMATCH_TMDB_API_KEY", "env-key")
	t.Setenv("CINEMATCH_RECOMMEND_RESULT_LIMIT", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want env override 9000", cfg.Server.Port)
	}
	if cfg.TMDB.APIKey != "env-key" {
		t.Errorf("api key = %q, want env-key", cfg.TMDB.APIKey)
	}
	if cfg.Recommend.ResultLimit != 50 {
		t.Errorf("result limit = %d, want 50", cfg.Recommend.ResultLimit)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cinematch.yaml")
	content := []byte("server:\n  port: 9191\nworker:\n  stale_after: 1h\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want file value 9191", cfg.Server.Port)
	}
	if cfg.Worker.StaleAfter != time.Hour {
		t.Errorf("stale_after = %s, want 1h", cfg.Worker.StaleAfter)
	}
	// Untouched sections keep defaults.
	if cfg.Worker.Concurrency != 2 {
		t.Errorf("concurrency = %d, want default 2", cfg.Worker.Concurrency)
	}
}

func TestEnvTransformDropsUnmapped(t *testing.T) {
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("PATH mapped to %q, want dropped", got)
	}
	if got := envTransformFunc("CINEMATCH_NO_SUCH_KEY"); got != "" {
		t.Errorf("CINEMATCH_NO_SUCH_KEY mapped to %q, want dropped", got)
	}
	if got := envTransformFunc("CINEMATCH_TMDB_API_KEY"); got != "tmdb.api_key" {
		t.Errorf("CINEMATCH_TMDB_API_KEY mapped to %q, want tmdb.api_key", got)
	}
}

func TestLoadIgnoresUnprefixedEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8484 {
		t.Errorf("port = %d, unprefixed variable must not override the default", cfg.Server.Port)
	}
}
