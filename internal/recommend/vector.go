// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package recommend

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Vector is a sparse feature vector keyed by "type:value" strings,
// e.g. "genre:drama" or "decade:1990s". A nil or empty Vector is a
// valid zero vector.
type Vector map[string]float64

// FeatureKey builds the canonical key for a feature. Values are
// trimmed and lowercased so "Drama" and "drama " land on the same key.
func FeatureKey(ftype, value string) string {
	return ftype + ":" + strings.ToLower(strings.TrimSpace(value))
}

// DecadeKey builds the feature key for a release decade, e.g.
// "decade:1990s".
func DecadeKey(decade int) string {
	return FeatureDecade + ":" + strconv.Itoa(decade) + "s"
}

// Dot computes the dot product of two sparse vectors, iterating the
// smaller map so cost tracks the sparser operand.
func Dot(a, b Vector) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	var sum float64
	for k, va := range a {
		if vb, ok := b[k]; ok {
			sum += va * vb
		}
	}
	return sum
}

// Magnitude returns the squared Euclidean norm. Callers wanting the
// true norm take the square root once instead of per element.
func Magnitude(v Vector) float64 {
	var sum float64
	for _, val := range v {
		sum += val * val
	}
	return sum
}

// Cosine computes cosine similarity. Zero when either vector is empty
// or has zero magnitude.
func Cosine(a, b Vector) float64 {
	denom := math.Sqrt(Magnitude(a) * Magnitude(b))
	if denom == 0 {
		return 0
	}
	return Dot(a, b) / denom
}

// TopFeatures returns up to n feature values of the given type,
// ordered by descending weight with key order breaking ties. The
// "type:" prefix is stripped from the returned values.
func TopFeatures(v Vector, ftype string, n int) []string {
	prefix := ftype + ":"

	type entry struct {
		key    string
		weight float64
	}
	var entries []entry
	for k, w := range v {
		if strings.HasPrefix(k, prefix) && w > 0 {
			entries = append(entries, entry{key: k, weight: w})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].weight != entries[j].weight {
			return entries[i].weight > entries[j].weight
		}
		return entries[i].key < entries[j].key
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimPrefix(e.key, prefix))
	}
	return out
}
