// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

// Package models defines the data structures shared across Cinematch:
// movies, users, viewing history, recommendation runs, and the API
// serialization shapes.
package models

import (
	"time"
)

// Movie represents a movie in the local catalog.
//
// Genres, Directors and Cast are canonical string slices. Raw metadata
// arrives in several shapes (JSON string arrays, arrays of credit
// objects, comma-separated strings) and is normalized by ParseNameList
// at the ingestion boundary, so everything past this struct sees one
// representation.
type Movie struct {
	ID          int64      `json:"id" db:"id"`
	ExternalID  int64      `json:"external_id,omitempty" db:"external_id"` // TMDB id; 0 = not linked
	Title       string     `json:"title" db:"title" validate:"required,min=1"`
	ReleaseDate *time.Time `json:"release_date,omitempty" db:"release_date"`
	Genres      []string   `json:"genres,omitempty" db:"genres"`
	Directors   []string   `json:"directors,omitempty" db:"directors"`
	Cast        []string   `json:"cast,omitempty" db:"cast_members"`
	Overview    string     `json:"overview,omitempty" db:"overview"`
	PosterPath  string     `json:"poster_path,omitempty" db:"poster_path"`
	Runtime     int        `json:"runtime,omitempty" db:"runtime"`
	Popularity  float64    `json:"popularity,omitempty" db:"popularity"`
	VoteAverage float64    `json:"vote_average,omitempty" db:"vote_average" validate:"gte=0,lte=10"`
	VoteCount   int64      `json:"vote_count,omitempty" db:"vote_count"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Year returns the release year, or 0 when the release date is unknown.
func (m *Movie) Year() int {
	if m.ReleaseDate == nil || m.ReleaseDate.IsZero() {
		return 0
	}
	return m.ReleaseDate.Year()
}

// Decade returns the release decade (e.g. 1990 for a 1994 film),
// or 0 when the release date is unknown.
func (m *Movie) Decade() int {
	year := m.Year()
	if year == 0 {
		return 0
	}
	return year - year%10
}

// Director returns the first credited director, or empty string.
func (m *Movie) Director() string {
	if len(m.Directors) == 0 {
		return ""
	}
	return m.Directors[0]
}

// User represents an account whose history drives recommendations.
// Account management itself lives outside this service; only the id
// and display name are needed here.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username" validate:"required,min=1"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
