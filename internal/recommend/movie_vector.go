// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package recommend

import (
	"strings"

	"github.com/jmawebb/cinematch/internal/models"
)

// IDFSource supplies an inverse-document-frequency multiplier per
// feature key, used to damp features so common they carry no signal.
type IDFSource interface {
	// Weight returns the multiplier for a feature key. Implementations
	// return 1.0 for unknown features.
	Weight(feature string) float64
}

// IDFMap adapts a plain map to IDFSource. Missing keys weigh 1.0.
type IDFMap map[string]float64

// Weight implements IDFSource.
func (m IDFMap) Weight(feature string) float64 {
	if w, ok := m[feature]; ok {
		return w
	}
	return 1.0
}

// IDFFunc adapts a function to IDFSource.
type IDFFunc func(feature string) float64

// Weight implements IDFSource.
func (f IDFFunc) Weight(feature string) float64 { return f(feature) }

// BuildMovieVector derives the sparse feature vector for a movie from
// its canonical metadata. Each genre, director, cast member, and the
// release decade becomes one feature weighted by its type weight and,
// when idf is non-nil, the feature's IDF multiplier. The result is
// deterministic for identical input.
func BuildMovieVector(m *models.Movie, w Weights, idf IDFSource) Vector {
	vec := make(Vector)

	add := func(ftype, value string) {
		base := w.TypeWeight(ftype)
		if base == 0 || strings.TrimSpace(value) == "" {
			return
		}
		key := FeatureKey(ftype, value)
		weight := base
		if idf != nil {
			weight *= idf.Weight(key)
		}
		if weight != 0 {
			vec[key] = weight
		}
	}

	for _, g := range m.Genres {
		add(FeatureGenre, g)
	}
	for _, d := range m.Directors {
		add(FeatureDirector, d)
	}
	for _, c := range m.Cast {
		add(FeatureCast, c)
	}

	if decade := m.Decade(); decade != 0 {
		key := DecadeKey(decade)
		weight := w.TypeWeight(FeatureDecade)
		if idf != nil {
			weight *= idf.Weight(key)
		}
		if weight != 0 {
			vec[key] = weight
		}
	}

	return vec
}
