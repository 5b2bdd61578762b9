// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package recommend

import (
	"time"

	"github.com/jmawebb/cinematch/internal/models"
)

// UserVectorOptions tunes profile aggregation.
type UserVectorOptions struct {
	// Decay applies the recency multiplier to event weights.
	Decay bool

	// Now anchors decay computation; zero means time.Now().
	Now time.Time
}

// BuildUserVector aggregates a user's merged viewing events into a
// profile vector: the weighted average of the watched movies' vectors,
// weighted by rating weight and, when enabled, recency decay.
//
// Events with a non-positive rating weight (1-2 star ratings) are
// skipped entirely, as are events whose movie has no vector. When
// nothing survives, the empty vector is returned; an empty profile is
// a valid terminal result, not an error.
func BuildUserVector(events []models.ViewingEvent, movieVectors map[int64]Vector, w Weights, opts UserVectorOptions) Vector {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	sum := make(Vector)
	var totalWeight float64

	for _, ev := range events {
		weight := w.RatingWeight(ev.Rating)
		if weight <= 0 {
			continue
		}
		if opts.Decay {
			weight *= w.RecencyMultiplier(ev.WatchedAt, now)
		}

		mv, ok := movieVectors[ev.MovieID]
		if !ok || len(mv) == 0 {
			continue
		}

		for k, v := range mv {
			sum[k] += v * weight
		}
		totalWeight += weight
	}

	if totalWeight == 0 {
		return Vector{}
	}

	for k := range sum {
		sum[k] /= totalWeight
	}
	return sum
}
