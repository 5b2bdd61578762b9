// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package embedcache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jmawebb/cinematch/internal/logging"
	"github.com/jmawebb/cinematch/internal/metrics"
	"github.com/jmawebb/cinematch/internal/models"
	"github.com/jmawebb/cinematch/internal/recommend"
)

// HistoryStore is the slice of persistence vector building needs.
// *database.DB satisfies it.
type HistoryStore interface {
	DiaryEntries(ctx context.Context, userID int64) ([]models.DiaryEntry, error)
	Ratings(ctx context.Context, userID int64) ([]models.Rating, error)
	MovieByID(ctx context.Context, id int64) (*models.Movie, error)
}

// Source resolves vectors with read-through caching: cache hit first,
// build from catalog and history on miss, store the result. It
// implements recommend.VectorSource.
type Source struct {
	store   HistoryStore
	cache   *Cache
	weights recommend.Weights
	decay   bool
	logger  zerolog.Logger
}

// NewSource wires a caching vector source.
func NewSource(store HistoryStore, cache *Cache, weights recommend.Weights, decay bool) *Source {
	return &Source{
		store:   store,
		cache:   cache,
		weights: weights,
		decay:   decay,
		logger:  logging.WithComponent("embedcache"),
	}
}

// MovieVector returns the feature vector for a movie, building and
// caching it on miss. Movies without a catalog id are built directly
// and never cached.
func (s *Source) MovieVector(_ context.Context, m *models.Movie) (recommend.Vector, error) {
	if m.ID == 0 {
		return recommend.BuildMovieVector(m, s.weights, nil), nil
	}

	if vec, ok, err := s.cache.MovieVector(m.ID); err != nil {
		return nil, err
	} else if ok {
		return vec, nil
	}

	vec := recommend.BuildMovieVector(m, s.weights, nil)
	metrics.EmbeddingBuilds.WithLabelValues("movie").Inc()
	if err := s.cache.SetMovieVector(m.ID, vec); err != nil {
		s.logger.Warn().Err(err).Int64("movie_id", m.ID).Msg("Failed to cache movie vector")
	}
	return vec, nil
}

// UserVector returns the user's profile vector, building and caching
// it on miss. An empty vector is a valid result for users with no
// usable history and is cached like any other.
func (s *Source) UserVector(ctx context.Context, userID int64) (recommend.Vector, error) {
	if vec, ok, err := s.cache.UserVector(userID); err != nil {
		return nil, err
	} else if ok {
		return vec, nil
	}

	vec, err := s.buildUserVector(ctx, userID)
	if err != nil {
		return nil, err
	}

	metrics.EmbeddingBuilds.WithLabelValues("user").Inc()
	if err := s.cache.SetUserVector(userID, vec); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to cache user vector")
	}
	return vec, nil
}

// InvalidateUser drops the user's cached profile so the next run
// rebuilds it from current history.
func (s *Source) InvalidateUser(userID int64) error {
	return s.cache.InvalidateUser(userID)
}

// InvalidateMovie drops a movie's cached vector after its metadata
// changed.
func (s *Source) InvalidateMovie(movieID int64) error {
	return s.cache.InvalidateMovie(movieID)
}

func (s *Source) buildUserVector(ctx context.Context, userID int64) (recommend.Vector, error) {
	diary, err := s.store.DiaryEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load diary for user %d: %w", userID, err)
	}
	ratings, err := s.store.Ratings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load ratings for user %d: %w", userID, err)
	}

	events := models.MergeViewingEvents(diary, ratings)

	movieVectors := make(map[int64]recommend.Vector, len(events))
	for _, ev := range events {
		m, err := s.store.MovieByID(ctx, ev.MovieID)
		if err != nil {
			return nil, fmt.Errorf("load movie %d: %w", ev.MovieID, err)
		}
		if m == nil {
			// History referencing a deleted movie contributes nothing.
			s.logger.Debug().Int64("movie_id", ev.MovieID).Msg("History references unknown movie")
			continue
		}
		vec, err := s.MovieVector(ctx, m)
		if err != nil {
			return nil, err
		}
		movieVectors[ev.MovieID] = vec
	}

	vec := recommend.BuildUserVector(events, movieVectors, s.weights, recommend.UserVectorOptions{
		Decay: s.decay,
	})

	s.logger.Debug().
		Int64("user_id", userID).
		Int("events", len(events)).
		Int("features", len(vec)).
		Msg("Profile vector built")
	return vec, nil
}
