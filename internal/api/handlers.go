// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jmawebb/cinematch/internal/database"
	"github.com/jmawebb/cinematch/internal/events"
	"github.com/jmawebb/cinematch/internal/logging"
	"github.com/jmawebb/cinematch/internal/metrics"
	"github.com/jmawebb/cinematch/internal/models"
)

// Handler serves the API endpoints.
type Handler struct {
	db       *database.DB
	bus      *events.Bus
	validate *validator.Validate
	logger   zerolog.Logger

	// defaultLimit is the run result size when the request names none.
	defaultLimit int
}

// NewHandler wires the API handler.
func NewHandler(db *database.DB, bus *events.Bus, defaultLimit int) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = 25
	}
	return &Handler{
		db:           db,
		bus:          bus,
		validate:     validator.New(),
		logger:       logging.WithComponent("api"),
		defaultLimit: defaultLimit,
	}
}

// Health reports liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Database not available", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
}

// CreateUser registers a user account.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.db.CreateUser(r.Context(), req.Username)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create user", err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

type createRunRequest struct {
	Limit int `json:"limit" validate:"gte=0,lte=100"`
}

// CreateRun creates a pending recommendation run for the user and
// wakes the worker. The reply is 202 with the run to poll.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	req := createRunRequest{}
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}
	if req.Limit == 0 {
		req.Limit = h.defaultLimit
	}

	run := &models.RecommendationRun{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		Limit:         req.Limit,
		CorrelationID: logging.CorrelationIDFromContext(r.Context()),
	}
	if err := h.db.CreateRun(r.Context(), run); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create run", err)
		return
	}
	metrics.RunsPending.Inc()

	if err := h.bus.PublishRunRequested(r.Context(), events.RunRequested{RunID: run.ID, UserID: user.ID}); err != nil {
		// The run stays pending; backlog replay picks it up on restart.
		h.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to publish run request")
	}

	respondJSON(w, http.StatusAccepted, run)
}

// runResponse is a run plus its decoded result payload.
type runResponse struct {
	*models.RecommendationRun
	Results json.RawMessage `json:"results,omitempty"`
}

// GetRun returns the state of one run, with results once completed.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := uuid.Parse(runID); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Run id must be a UUID", err)
		return
	}

	run, err := h.db.RunByID(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load run", err)
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Run not found", nil)
		return
	}

	resp := runResponse{RecommendationRun: run}
	if run.Status == models.RunStatusCompleted {
		resp.Results = run.Payload
	}
	respondJSON(w, http.StatusOK, resp)
}

// LatestRecommendations returns the payload of the user's most recent
// completed run.
func (h *Handler) LatestRecommendations(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	run, err := h.db.LatestCompletedRun(r.Context(), user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load recommendations", err)
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No completed runs for user", nil)
		return
	}
	respondJSON(w, http.StatusOK, runResponse{RecommendationRun: run, Results: run.Payload})
}

type diaryRequest struct {
	MovieID   int64      `json:"movie_id" validate:"required,gt=0"`
	Rating    *float64   `json:"rating,omitempty" validate:"omitempty,gte=0,lte=10"`
	WatchedAt *time.Time `json:"watched_at,omitempty"`
}

// AddDiaryEntry logs a watch and invalidates the user's profile.
func (h *Handler) AddDiaryEntry(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req diaryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.requireMovie(w, r, req.MovieID) {
		return
	}

	entry, err := h.db.AddDiaryEntry(r.Context(), models.DiaryEntry{
		UserID:    user.ID,
		MovieID:   req.MovieID,
		Rating:    req.Rating,
		WatchedAt: req.WatchedAt,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to add diary entry", err)
		return
	}

	h.publishHistoryChanged(r.Context(), user.ID)
	respondJSON(w, http.StatusCreated, entry)
}

type ratingRequest struct {
	MovieID int64   `json:"movie_id" validate:"required,gt=0"`
	Score   float64 `json:"score" validate:"gte=0,lte=10"`
}

// SetRating upserts a standalone rating and invalidates the profile.
func (h *Handler) SetRating(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req ratingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.requireMovie(w, r, req.MovieID) {
		return
	}

	if err := h.db.SetRating(r.Context(), user.ID, req.MovieID, req.Score); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to set rating", err)
		return
	}

	h.publishHistoryChanged(r.Context(), user.ID)
	respondJSON(w, http.StatusOK, map[string]any{"movie_id": req.MovieID, "score": req.Score})
}

// AddToWatchlist marks a movie as to-watch.
func (h *Handler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	movieID, ok := h.movieIDParam(w, r)
	if !ok || !h.requireMovie(w, r, movieID) {
		return
	}

	if err := h.db.AddToWatchlist(r.Context(), user.ID, movieID); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update watchlist", err)
		return
	}

	h.publishHistoryChanged(r.Context(), user.ID)
	respondJSON(w, http.StatusOK, map[string]int64{"movie_id": movieID})
}

// RemoveFromWatchlist drops a movie from the watchlist.
func (h *Handler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	movieID, ok := h.movieIDParam(w, r)
	if !ok {
		return
	}

	if err := h.db.RemoveFromWatchlist(r.Context(), user.ID, movieID); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update watchlist", err)
		return
	}

	h.publishHistoryChanged(r.Context(), user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// decode parses and validates a JSON request body. On failure it has
// already written the error response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return false
	}
	return true
}

// requireUser resolves the {userID} path parameter to an existing
// user, writing 400/404 on failure.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "User id must be a positive integer", err)
		return nil, false
	}

	user, err := h.db.UserByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load user", err)
		return nil, false
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
		return nil, false
	}
	return user, true
}

// requireMovie verifies the movie exists in the catalog.
func (h *Handler) requireMovie(w http.ResponseWriter, r *http.Request, movieID int64) bool {
	m, err := h.db.MovieByID(r.Context(), movieID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load movie", err)
		return false
	}
	if m == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Movie not found", nil)
		return false
	}
	return true
}

func (h *Handler) movieIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "movieID"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Movie id must be a positive integer", err)
		return 0, false
	}
	return id, true
}

func (h *Handler) publishHistoryChanged(ctx context.Context, userID int64) {
	if err := h.bus.PublishHistoryChanged(ctx, events.HistoryChanged{UserID: userID}); err != nil {
		h.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to publish history change")
	}
}

// respondJSON wraps data in the response envelope.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(&models.APIResponse{
		Status:   "ok",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends the error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}

	w.Header().Set("Content-Type", "application/json")
	body, merr := json.Marshal(&models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message},
	})
	if merr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, werr := w.Write(body); werr != nil {
		logging.Error().Err(werr).Msg("Failed to write error response")
	}
}
