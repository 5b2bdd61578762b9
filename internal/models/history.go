// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package models

import "time"

// DiaryEntry is a logged watch of a movie, optionally rated and dated.
// Diary CRUD is owned by the request layer; the engine only reads these
// rows to build user profiles and exclusion sets.
type DiaryEntry struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	MovieID   int64      `json:"movie_id" db:"movie_id"`
	Rating    *float64   `json:"rating,omitempty" db:"rating"` // 0-10 scale, nil = unrated
	WatchedAt *time.Time `json:"watched_at,omitempty" db:"watched_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Rating is a standalone rating not attached to a diary entry.
type Rating struct {
	ID      int64     `json:"id" db:"id"`
	UserID  int64     `json:"user_id" db:"user_id"`
	MovieID int64     `json:"movie_id" db:"movie_id"`
	Score   float64   `json:"score" db:"score"` // 0-10 scale
	RatedAt time.Time `json:"rated_at" db:"rated_at"`
}

// WatchlistItem marks a movie the user intends to watch. Watchlisted
// movies are excluded from recommendation candidates.
type WatchlistItem struct {
	UserID  int64     `json:"user_id" db:"user_id"`
	MovieID int64     `json:"movie_id" db:"movie_id"`
	AddedAt time.Time `json:"added_at" db:"added_at"`
}

// ViewingEvent is the merged view of a user's interaction with one
// movie: diary entries and standalone ratings collapse into a single
// event per movie before profile aggregation. Rating is nil for
// seen-but-unrated movies; WatchedAt is nil when no watch date was
// recorded.
type ViewingEvent struct {
	MovieID   int64      `json:"movie_id"`
	Rating    *float64   `json:"rating,omitempty"`
	WatchedAt *time.Time `json:"watched_at,omitempty"`
}

// MergeViewingEvents collapses diary entries and standalone ratings
// into one ViewingEvent per movie. When a movie appears more than once
// the event with the latest timestamp wins; an event with no timestamp
// is always superseded by a dated one. A standalone rating carries its
// RatedAt as the event timestamp, so recency decay applies to
// rating-only movies too, and it fills a missing rating on the
// surviving event.
func MergeViewingEvents(diary []DiaryEntry, ratings []Rating) []ViewingEvent {
	merged := make(map[int64]ViewingEvent)

	for _, d := range diary {
		ev := ViewingEvent{MovieID: d.MovieID, Rating: d.Rating, WatchedAt: d.WatchedAt}
		if cur, ok := merged[d.MovieID]; ok {
			ev = pickNewer(cur, ev)
		}
		merged[d.MovieID] = ev
	}

	for _, r := range ratings {
		score := r.Score
		ev := ViewingEvent{MovieID: r.MovieID, Rating: &score}
		if !r.RatedAt.IsZero() {
			ts := r.RatedAt
			ev.WatchedAt = &ts
		}
		if cur, ok := merged[r.MovieID]; ok {
			ev = pickNewer(cur, ev)
			if ev.Rating == nil {
				ev.Rating = &score
			}
		}
		merged[r.MovieID] = ev
	}

	events := make([]ViewingEvent, 0, len(merged))
	for _, ev := range merged {
		events = append(events, ev)
	}
	return events
}

// pickNewer keeps the event with the later watch date. Undated events
// lose to dated ones; between two undated events the rated one wins.
func pickNewer(a, b ViewingEvent) ViewingEvent {
	switch {
	case a.WatchedAt == nil && b.WatchedAt == nil:
		if a.Rating == nil && b.Rating != nil {
			return b
		}
		return a
	case a.WatchedAt == nil:
		return b
	case b.WatchedAt == nil:
		return a
	case b.WatchedAt.After(*a.WatchedAt):
		return b
	default:
		return a
	}
}
