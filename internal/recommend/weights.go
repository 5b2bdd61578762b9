// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

// Package recommend implements the content-based recommendation core:
// feature weighting, movie and user embeddings, similarity scoring,
// candidate generation, and the ranked recommender.
package recommend

import (
	"fmt"
	"math"
	"time"
)

// Feature type names used as the prefix of feature keys.
const (
	FeatureGenre    = "genre"
	FeatureDirector = "director"
	FeatureCast     = "cast"
	FeatureDecade   = "decade"
)

// Weights configures how movie metadata and user history translate
// into vector weights.
type Weights struct {
	// TypeWeights maps a feature type to its base weight. Feature
	// types absent from the map contribute zero.
	TypeWeights map[string]float64 `json:"type_weights" koanf:"type_weights"`

	// StarWeights maps a 1-5 star bucket to the event weight used in
	// profile aggregation. Buckets 1 and 2 are zero so disliked
	// movies never pull the profile toward them.
	StarWeights map[int]float64 `json:"star_weights" koanf:"star_weights"`

	// UnratedWeight is used for movies the user watched but did not
	// rate.
	UnratedWeight float64 `json:"unrated_weight" koanf:"unrated_weight"`

	// HalfLifeDays controls recency decay: an event this many days
	// old carries half the weight of one watched today.
	HalfLifeDays float64 `json:"half_life_days" koanf:"half_life_days"`
}

// DefaultWeights returns the production weight configuration.
func DefaultWeights() Weights {
	return Weights{
		TypeWeights: map[string]float64{
			FeatureGenre:    1.0,
			FeatureDirector: 0.8,
			FeatureCast:     0.5,
			FeatureDecade:   0.3,
		},
		StarWeights: map[int]float64{
			1: 0,
			2: 0,
			3: 1.0,
			4: 2.0,
			5: 3.0,
		},
		UnratedWeight: 1.0,
		HalfLifeDays:  180,
	}
}

// Validate checks the weight configuration for values that would
// corrupt scoring.
func (w Weights) Validate() error {
	for ftype, weight := range w.TypeWeights {
		if weight < 0 {
			return fmt.Errorf("type weight for %q must be >= 0, got %f", ftype, weight)
		}
	}
	for star, weight := range w.StarWeights {
		if star < 1 || star > 5 {
			return fmt.Errorf("star bucket must be 1-5, got %d", star)
		}
		if weight < 0 {
			return fmt.Errorf("star weight for %d must be >= 0, got %f", star, weight)
		}
	}
	if w.UnratedWeight < 0 {
		return fmt.Errorf("unrated weight must be >= 0, got %f", w.UnratedWeight)
	}
	if w.HalfLifeDays <= 0 {
		return fmt.Errorf("half life must be > 0 days, got %f", w.HalfLifeDays)
	}
	return nil
}

// TypeWeight returns the base weight for a feature type, zero for
// unknown types.
func (w Weights) TypeWeight(ftype string) float64 {
	return w.TypeWeights[ftype]
}

// RatingWeight converts a 0-10 rating into an event weight. A nil
// rating means seen-but-unrated and gets UnratedWeight. Otherwise the
// rating maps to a star bucket, round(score/2) clamped to [1,5], and
// the bucket's weight is returned.
func (w Weights) RatingWeight(rating *float64) float64 {
	if rating == nil {
		return w.UnratedWeight
	}
	stars := int(math.Round(*rating / 2))
	if stars < 1 {
		stars = 1
	}
	if stars > 5 {
		stars = 5
	}
	return w.StarWeights[stars]
}

// RecencyMultiplier returns the exponential decay factor for an event
// watched at ts: exp(-age/halfLife), so e.g. 1/e after one half-life
// span. Events with no timestamp decay not at all, and neither do
// events from the future.
func (w Weights) RecencyMultiplier(ts *time.Time, now time.Time) float64 {
	if ts == nil || ts.IsZero() {
		return 1.0
	}
	ageDays := now.Sub(*ts).Hours() / 24
	if ageDays <= 0 {
		return 1.0
	}
	return math.Exp(-ageDays / w.HalfLifeDays)
}
