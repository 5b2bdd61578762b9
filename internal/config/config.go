// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

// Package config loads and validates the service configuration from
// three layers: struct defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/jmawebb/cinematch/internal/recommend"
	"github.com/jmawebb/cinematch/internal/tmdb"
)

// Config is the root configuration.
type Config struct {
	Logging   LoggingConfig   `json:"logging" koanf:"logging"`
	Database  DatabaseConfig  `json:"database" koanf:"database"`
	Cache     CacheConfig     `json:"cache" koanf:"cache"`
	TMDB      tmdb.Config     `json:"tmdb" koanf:"tmdb"`
	Recommend RecommendConfig `json:"recommend" koanf:"recommend"`
	Worker    WorkerConfig    `json:"worker" koanf:"worker"`
	Server    ServerConfig    `json:"server" koanf:"server"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `json:"level" koanf:"level"`
	Format string `json:"format" koanf:"format"` // json or console
	Caller bool   `json:"caller" koanf:"caller"`
}

// DatabaseConfig configures the DuckDB catalog store.
type DatabaseConfig struct {
	// Path is the database file. ":memory:" is valid for tests.
	Path string `json:"path" koanf:"path"`

	// Threads caps DuckDB worker threads. 0 = number of CPUs.
	Threads int `json:"threads" koanf:"threads"`

	// MaxMemory is DuckDB's memory budget, e.g. "512MB".
	MaxMemory string `json:"max_memory" koanf:"max_memory"`
}

// CacheConfig configures the Badger embedding cache.
type CacheConfig struct {
	// Dir is the cache directory. Empty selects an in-memory cache.
	Dir string `json:"dir" koanf:"dir"`
}

// RecommendConfig groups the recommendation core knobs.
type RecommendConfig struct {
	Weights   recommend.Weights         `json:"weights" koanf:"weights"`
	Generator recommend.GeneratorConfig `json:"generator" koanf:"generator"`

	// Decay applies recency weighting to viewing events.
	Decay bool `json:"decay" koanf:"decay"`

	// CandidateLimit bounds the pool scored per run.
	CandidateLimit int `json:"candidate_limit" koanf:"candidate_limit"`

	// ResultLimit is the default recommendation list length.
	ResultLimit int `json:"result_limit" koanf:"result_limit"`
}

// WorkerConfig configures the run worker.
type WorkerConfig struct {
	// Concurrency is how many runs execute in parallel.
	Concurrency int `json:"concurrency" koanf:"concurrency"`

	// StaleAfter is the age at which an in_progress run is presumed
	// orphaned and failed by the janitor.
	StaleAfter time.Duration `json:"stale_after" koanf:"stale_after"`

	// ReapInterval is how often the janitor sweeps.
	ReapInterval time.Duration `json:"reap_interval" koanf:"reap_interval"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `json:"host" koanf:"host"`
	Port int    `json:"port" koanf:"port"`

	// RequestsPerMinute is the per-IP rate limit on API routes.
	RequestsPerMinute int `json:"requests_per_minute" koanf:"requests_per_minute"`

	// CORSOrigins lists allowed origins. Empty allows none.
	CORSOrigins []string `json:"cors_origins" koanf:"cors_origins"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" koanf:"shutdown_timeout"`
}

// defaultConfig returns the full default configuration tree.
func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Path:      "data/cinematch.db",
			MaxMemory: "512MB",
		},
		Cache: CacheConfig{
			Dir: "data/embeddings",
		},
		TMDB: tmdb.DefaultConfig(),
		Recommend: RecommendConfig{
			Weights:        recommend.DefaultWeights(),
			Generator:      recommend.DefaultGeneratorConfig(),
			Decay:          true,
			CandidateLimit: 200,
			ResultLimit:    25,
		},
		Worker: WorkerConfig{
			Concurrency:  2,
			StaleAfter:   30 * time.Minute,
			ReapInterval: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8484,
			RequestsPerMinute: 120,
			ShutdownTimeout:   15 * time.Second,
		},
	}
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must be >= 0, got %d", c.Database.Threads)
	}
	if err := c.Recommend.Weights.Validate(); err != nil {
		return fmt.Errorf("recommend.weights: %w", err)
	}
	if err := c.Recommend.Generator.Validate(); err != nil {
		return fmt.Errorf("recommend.generator: %w", err)
	}
	if c.Recommend.CandidateLimit < 1 {
		return fmt.Errorf("recommend.candidate_limit must be >= 1, got %d", c.Recommend.CandidateLimit)
	}
	if c.Recommend.ResultLimit < 1 {
		return fmt.Errorf("recommend.result_limit must be >= 1, got %d", c.Recommend.ResultLimit)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}
	if c.Worker.StaleAfter <= 0 {
		return fmt.Errorf("worker.stale_after must be > 0, got %s", c.Worker.StaleAfter)
	}
	if c.Worker.ReapInterval <= 0 {
		return fmt.Errorf("worker.reap_interval must be > 0, got %s", c.Worker.ReapInterval)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RequestsPerMinute < 1 {
		return fmt.Errorf("server.requests_per_minute must be >= 1, got %d", c.Server.RequestsPerMinute)
	}
	return nil
}
