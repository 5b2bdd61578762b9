// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

// Package api exposes the HTTP surface: run creation and polling,
// history writes, and operational endpoints. No recommendation logic
// lives here.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmawebb/cinematch/internal/config"
)

// NewRouter assembles the chi router around the handler.
func NewRouter(h *Handler, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RequestsPerMinute > 0 {
			r.Use(httprate.LimitByIP(cfg.RequestsPerMinute, time.Minute))
		}
		r.Use(metricsMiddleware())

		r.Post("/users", h.CreateUser)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/recommendation-runs", h.CreateRun)
			r.Get("/recommendations", h.LatestRecommendations)

			r.Post("/diary", h.AddDiaryEntry)
			r.Post("/ratings", h.SetRating)
			r.Put("/watchlist/{movieID}", h.AddToWatchlist)
			r.Delete("/watchlist/{movieID}", h.RemoveFromWatchlist)
		})

		r.Get("/recommendation-runs/{runID}", h.GetRun)
	})

	return r
}
