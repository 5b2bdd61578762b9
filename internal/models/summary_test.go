// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package models

import (
	"reflect"
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	release := time.Date(1996, 3, 8, 0, 0, 0, 0, time.UTC)
	m := &Movie{
		ID:         42,
		ExternalID: 275,
		Title:      "Fargo",
		ReleaseDate: &release,
		Directors:  []string{"Joel Coen", "Ethan Coen"},
		Cast:       []string{"Frances McDormand", "William H. Macy", "Steve Buscemi", "Peter Stormare"},
		PosterPath: "/fargo.jpg",
	}

	got := Summarize(m)
	want := MovieSummary{
		ID:          42,
		ExternalID:  275,
		Title:       "Fargo",
		Year:        1996,
		Director:    "Joel Coen",
		Cast:        []string{"Frances McDormand", "William H. Macy", "Steve Buscemi"},
		PosterURL:   "https://image.tmdb.org/t/p/w342/fargo.jpg",
		DetailsPath: "/movies/42",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
}

func TestSummarizePlaceholderPoster(t *testing.T) {
	m := &Movie{ID: 7, Title: "Obscure Film"}
	got := Summarize(m)

	if got.PosterURL != posterPlaceholder {
		t.Errorf("PosterURL = %q, want placeholder %q", got.PosterURL, posterPlaceholder)
	}
	if got.Year != 0 {
		t.Errorf("Year = %d, want 0 for unknown release date", got.Year)
	}
	if got.Director != "" {
		t.Errorf("Director = %q, want empty", got.Director)
	}
	if len(got.Cast) != 0 {
		t.Errorf("Cast = %v, want empty", got.Cast)
	}
}

func TestMovieDecade(t *testing.T) {
	tests := []struct {
		name string
		year int
		want int
	}{
		{"mid decade", 1994, 1990},
		{"decade start", 2000, 2000},
		{"decade end", 2019, 2010},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release := time.Date(tt.year, 6, 1, 0, 0, 0, 0, time.UTC)
			m := &Movie{ReleaseDate: &release}
			if got := m.Decade(); got != tt.want {
				t.Errorf("Decade() = %d, want %d", got, tt.want)
			}
		})
	}

	t.Run("unknown release date", func(t *testing.T) {
		m := &Movie{}
		if got := m.Decade(); got != 0 {
			t.Errorf("Decade() = %d, want 0", got)
		}
	})
}
