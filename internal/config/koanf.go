// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces every configuration environment variable.
const EnvPrefix = "CINEMATCH_"

// ConfigPathEnvVar overrides config file discovery.
const ConfigPathEnvVar = "CINEMATCH_CONFIG"

// DefaultConfigPaths are searched in order when no explicit path is
// set.
var DefaultConfigPaths = []string{
	"cinematch.yaml",
	"config/cinematch.yaml",
	"/etc/cinematch/cinematch.yaml",
}

// Load builds the configuration from three layers, lowest priority
// first: struct defaults, a YAML file (if found), environment
// variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, checking
// the env var override before the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps CINEMATCH_-prefixed environment variable names
// to koanf config paths. Unmapped variables are dropped so arbitrary
// environment noise never lands in the config tree.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

	envMappings := map[string]string{
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		"database_path":       "database.path",
		"database_threads":    "database.threads",
		"database_max_memory": "database.max_memory",

		"cache_dir": "cache.dir",

		"tmdb_api_key":          "tmdb.api_key",
		"tmdb_base_url":         "tmdb.base_url",
		"tmdb_request_interval": "tmdb.request_interval",
		"tmdb_timeout":          "tmdb.timeout",

		"recommend_decay":           "recommend.decay",
		"recommend_candidate_limit": "recommend.candidate_limit",
		"recommend_result_limit":    "recommend.result_limit",
		"recommend_half_life_days":  "recommend.weights.half_life_days",
		"recommend_min_popularity":  "recommend.generator.min_popularity",

		"worker_concurrency":   "worker.concurrency",
		"worker_stale_after":   "worker.stale_after",
		"worker_reap_interval": "worker.reap_interval",

		"server_host":                "server.host",
		"server_port":                "server.port",
		"server_requests_per_minute": "server.requests_per_minute",
		"server_cors_origins":        "server.cors_origins",
		"server_shutdown_timeout":    "server.shutdown_timeout",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return "" // drop unmapped variables
}
