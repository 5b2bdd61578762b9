// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

// Package main is the entry point for the Cinematch server.
//
// Cinematch is a self-hosted movie recommendation engine. It builds
// taste profiles from a user's viewing diary, ratings, and watchlist,
// generates candidates from the local catalog and TMDB, and serves
// ranked recommendations over a REST API.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered Koanf v2 sources (env, config file, defaults)
//  2. Database: DuckDB catalog, viewing history, and run store
//  3. Embedding cache: Badger-backed movie and profile vectors
//  4. TMDB client: rate-limited, circuit-broken metadata source (optional)
//  5. Recommendation core: candidate generator and scorer
//  6. Event bus: in-process pub/sub for run requests and history changes
//  7. Run worker: supervised pool executing recommendation runs
//  8. HTTP server: REST API with Prometheus metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables with the CINEMATCH_ prefix,
// an optional config file (config.yaml), and built-in defaults.
//
// TMDB integration is optional. Without CINEMATCH_TMDB_API_KEY the
// engine runs local-only: candidates come from the catalog alone and
// no external calls are made.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the
// supervision tree stops the HTTP server and run worker, in-flight
// requests drain within the shutdown timeout, and the database is
// checkpointed on close.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmawebb/cinematch/internal/api"
	"github.com/jmawebb/cinematch/internal/config"
	"github.com/jmawebb/cinematch/internal/database"
	"github.com/jmawebb/cinematch/internal/embedcache"
	"github.com/jmawebb/cinematch/internal/events"
	"github.com/jmawebb/cinematch/internal/logging"
	"github.com/jmawebb/cinematch/internal/recommend"
	"github.com/jmawebb/cinematch/internal/runs"
	"github.com/jmawebb/cinematch/internal/supervisor"
	"github.com/jmawebb/cinematch/internal/tmdb"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("cache_dir", cfg.Cache.Dir).
		Bool("tmdb_enabled", cfg.TMDB.APIKey != "").
		Msg("Starting Cinematch")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	cache, err := embedcache.Open(cfg.Cache.Dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open embedding cache")
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing embedding cache")
		}
	}()

	vectors := embedcache.NewSource(db, cache, cfg.Recommend.Weights, cfg.Recommend.Decay)

	// TMDB is optional. A missing or rejected API key degrades the
	// engine to local-only candidate generation instead of failing
	// startup.
	var movieSource tmdb.Source
	client, err := tmdb.NewClient(cfg.TMDB)
	switch {
	case err == nil:
		movieSource = tmdb.NewBreakerSource(client)
		logging.Info().Msg("TMDB client initialized with circuit breaker")
	case isAuthError(err):
		logging.Warn().Err(err).Msg("TMDB disabled, running with local catalog only")
	default:
		logging.Fatal().Err(err).Msg("Failed to initialize TMDB client")
	}

	generator := recommend.NewGenerator(db, movieSource, cfg.Recommend.Generator, nil)
	generator.SetMovieInvalidator(vectors)
	recommender := recommend.NewRecommender(vectors, generator, cfg.Recommend.CandidateLimit)

	bus := events.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	worker := runs.NewWorker(cfg.Worker, db, recommender, bus, vectors)

	handler := api.NewHandler(db, bus, cfg.Recommend.ResultLimit)
	router := api.NewRouter(handler, &cfg.Server)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.Add(worker)
	tree.Add(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree...")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	logging.Info().Msg("Application stopped gracefully")
}

func isAuthError(err error) bool {
	var ae *tmdb.AuthenticationError
	return errors.As(err, &ae)
}
