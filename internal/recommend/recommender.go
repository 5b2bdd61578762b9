// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/jmawebb/cinematch/internal/logging"
	"github.com/jmawebb/cinematch/internal/models"
)

// VectorSource resolves profile and movie vectors, normally backed by
// the embedding cache with build-on-miss.
type VectorSource interface {
	// UserVector returns the user's profile vector. An empty vector
	// means the user has no usable history; it is not an error.
	UserVector(ctx context.Context, userID int64) (Vector, error)

	// MovieVector returns the feature vector for a movie.
	MovieVector(ctx context.Context, m *models.Movie) (Vector, error)
}

// ScoredMovie pairs a candidate with its relevance score.
type ScoredMovie struct {
	Movie *models.Movie `json:"movie"`
	Score float64       `json:"score"`
}

// Recommender produces the ranked recommendation list.
type Recommender struct {
	vectors   VectorSource
	generator *Generator
	logger    zerolog.Logger

	// candidateLimit bounds the pool scored per run.
	candidateLimit int
}

// NewRecommender wires the recommender. candidateLimit <= 0 selects
// the default pool bound of 200.
func NewRecommender(vectors VectorSource, generator *Generator, candidateLimit int) *Recommender {
	if candidateLimit <= 0 {
		candidateLimit = 200
	}
	return &Recommender{
		vectors:        vectors,
		generator:      generator,
		logger:         logging.WithComponent("recommender"),
		candidateLimit: candidateLimit,
	}
}

// RecommendMoviesFor returns up to limit movies ranked by similarity
// to the user's profile. Only strictly positive scores survive: a zero
// score means no feature overlap and recommending on it would be
// noise. Equal scores order by ascending movie id so repeated runs
// over identical data return identical lists.
//
// A user with an empty profile gets an empty list immediately, before
// any candidate work.
func (r *Recommender) RecommendMoviesFor(ctx context.Context, userID int64, limit int) ([]ScoredMovie, error) {
	if limit < 1 {
		return nil, fmt.Errorf("recommendation limit must be >= 1, got %d", limit)
	}

	userVec, err := r.vectors.UserVector(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for user %d: %w", userID, err)
	}
	if len(userVec) == 0 {
		r.logger.Debug().Int64("user_id", userID).Msg("empty profile, no recommendations")
		return []ScoredMovie{}, nil
	}

	candidates, err := r.generator.Generate(ctx, userID, userVec, r.candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("candidate generation for user %d: %w", userID, err)
	}

	scored := make([]ScoredMovie, 0, len(candidates))
	for _, movie := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mv, err := r.vectors.MovieVector(ctx, movie)
		if err != nil {
			r.logger.Warn().Err(err).Int64("movie_id", movie.ID).Msg("skipping unscorable movie")
			continue
		}

		score := Dot(userVec, mv)
		if score > 0 {
			scored = append(scored, ScoredMovie{Movie: movie, Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Movie.ID < scored[j].Movie.ID
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}

	r.logger.Debug().
		Int64("user_id", userID).
		Int("candidates", len(candidates)).
		Int("recommended", len(scored)).
		Msg("recommendation scoring complete")
	return scored, nil
}
