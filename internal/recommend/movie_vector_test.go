// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package recommend

import (
	"reflect"
	"testing"
	"time"

	"github.com/jmawebb/cinematch/internal/models"
)

func testMovie() *models.Movie {
	release := time.Date(1996, 3, 8, 0, 0, 0, 0, time.UTC)
	return &models.Movie{
		ID:          1,
		Title:       "Fargo",
		ReleaseDate: &release,
		Genres:      []string{"Crime", "Drama"},
		Directors:   []string{"Joel Coen"},
		Cast:        []string{"Frances McDormand", "William H. Macy"},
	}
}

func TestBuildMovieVector(t *testing.T) {
	w := DefaultWeights()
	got := BuildMovieVector(testMovie(), w, nil)

	want := Vector{
		"genre:crime":             1.0,
		"genre:drama":             1.0,
		"director:joel coen":      0.8,
		"cast:frances mcdormand":  0.5,
		"cast:william h. macy":    0.5,
		"decade:1990s":            0.3,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildMovieVector() = %v, want %v", got, want)
	}
}

func TestBuildMovieVectorDeterministic(t *testing.T) {
	w := DefaultWeights()
	m := testMovie()
	a := BuildMovieVector(m, w, nil)
	b := BuildMovieVector(m, w, nil)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical input must produce identical vectors")
	}
}

func TestBuildMovieVectorNoReleaseDate(t *testing.T) {
	w := DefaultWeights()
	m := testMovie()
	m.ReleaseDate = nil

	got := BuildMovieVector(m, w, nil)
	for k := range got {
		if k == "decade:0s" || k == "decade:1990s" {
			t.Errorf("unexpected decade feature %q for undated movie", k)
		}
	}
}

func TestBuildMovieVectorEmptyMetadata(t *testing.T) {
	w := DefaultWeights()
	m := &models.Movie{ID: 2, Title: "Bare"}
	got := BuildMovieVector(m, w, nil)
	if len(got) != 0 {
		t.Errorf("movie with no metadata should produce empty vector, got %v", got)
	}
}

func TestBuildMovieVectorIDF(t *testing.T) {
	w := DefaultWeights()
	idf := IDFMap{
		"genre:drama": 0.2, // drama is everywhere, damp it
	}

	got := BuildMovieVector(testMovie(), w, idf)
	if got["genre:drama"] != 0.2 {
		t.Errorf("damped feature = %f, want 0.2", got["genre:drama"])
	}
	if got["genre:crime"] != 1.0 {
		t.Errorf("unlisted feature = %f, want unchanged 1.0", got["genre:crime"])
	}
}

func TestBuildMovieVectorIDFFunc(t *testing.T) {
	w := DefaultWeights()
	half := IDFFunc(func(string) float64 { return 0.5 })

	got := BuildMovieVector(testMovie(), w, half)
	if got["genre:crime"] != 0.5 {
		t.Errorf("feature = %f, want 0.5 through func adapter", got["genre:crime"])
	}
}

func TestBuildMovieVectorUnknownTypeDropped(t *testing.T) {
	w := Weights{
		TypeWeights:  map[string]float64{FeatureGenre: 1.0}, // no director/cast/decade
		StarWeights:  map[int]float64{3: 1},
		HalfLifeDays: 180,
	}

	got := BuildMovieVector(testMovie(), w, nil)
	want := Vector{"genre:crime": 1.0, "genre:drama": 1.0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildMovieVector() = %v, want genre features only %v", got, want)
	}
}
