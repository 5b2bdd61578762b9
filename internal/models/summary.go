// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package models

import "fmt"

const (
	// posterBaseURL is the TMDB image CDN prefix for poster paths.
	posterBaseURL = "https://image.tmdb.org/t/p/w342"

	// posterPlaceholder is served when a movie has no poster.
	posterPlaceholder = "/static/img/poster-placeholder.svg"

	// summaryCastSize caps the cast list in summaries.
	summaryCastSize = 3
)

// MovieSummary is the compact movie shape embedded in run payloads and
// API responses.
type MovieSummary struct {
	ID          int64    `json:"id"`
	ExternalID  int64    `json:"external_id,omitempty"`
	Title       string   `json:"title"`
	Year        int      `json:"year,omitempty"`
	Director    string   `json:"director,omitempty"`
	Cast        []string `json:"cast,omitempty"`
	PosterURL   string   `json:"poster_url"`
	DetailsPath string   `json:"details_path"`
}

// Summarize builds the API summary for a movie: first credited
// director, at most three cast members, and a placeholder poster when
// none is set.
func Summarize(m *Movie) MovieSummary {
	cast := m.Cast
	if len(cast) > summaryCastSize {
		cast = cast[:summaryCastSize]
	}

	poster := posterPlaceholder
	if m.PosterPath != "" {
		poster = posterBaseURL + m.PosterPath
	}

	return MovieSummary{
		ID:          m.ID,
		ExternalID:  m.ExternalID,
		Title:       m.Title,
		Year:        m.Year(),
		Director:    m.Director(),
		Cast:        cast,
		PosterURL:   poster,
		DetailsPath: fmt.Sprintf("/movies/%d", m.ID),
	}
}

// SummarizeAll maps Summarize over a movie slice.
func SummarizeAll(movies []*Movie) []MovieSummary {
	out := make([]MovieSummary, 0, len(movies))
	for _, m := range movies {
		out = append(out, Summarize(m))
	}
	return out
}
