// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmawebb/cinematch/internal/metrics"
	"github.com/jmawebb/cinematch/internal/models"
)

// CreateUser stores a new user and returns it with its id set.
func (db *DB) CreateUser(ctx context.Context, username string) (*models.User, error) {
	start := time.Now()

	now := time.Now().UTC()
	u := models.User{Username: username, CreatedAt: now}
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (username, created_at) VALUES (?, ?) RETURNING id`,
		username, now).Scan(&u.ID)
	metrics.ObserveDBQuery("insert", "users", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", username, err)
	}
	return &u, nil
}

// UserByID returns the user with the given id, or (nil, nil) when none
// exists.
func (db *DB) UserByID(ctx context.Context, id int64) (*models.User, error) {
	start := time.Now()

	var u models.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.CreatedAt)
	metrics.ObserveDBQuery("select", "users", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %d: %w", id, err)
	}
	return &u, nil
}

// DiaryEntries returns all diary entries for the user, newest watch
// first with undated entries last.
func (db *DB) DiaryEntries(ctx context.Context, userID int64) ([]models.DiaryEntry, error) {
	start := time.Now()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, movie_id, rating, watched_at, created_at
		 FROM diary_entries WHERE user_id = ?
		 ORDER BY watched_at DESC NULLS LAST, id DESC`, userID)
	metrics.ObserveDBQuery("select", "diary_entries", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query diary for user %d: %w", userID, err)
	}
	defer closeRows(rows)

	var entries []models.DiaryEntry
	for rows.Next() {
		var (
			e         models.DiaryEntry
			rating    sql.NullFloat64
			watchedAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.MovieID, &rating, &watchedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan diary entry: %w", err)
		}
		if rating.Valid {
			v := rating.Float64
			e.Rating = &v
		}
		if watchedAt.Valid {
			t := watchedAt.Time
			e.WatchedAt = &t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("diary row iteration failed: %w", err)
	}
	return entries, nil
}

// AddDiaryEntry logs a watch of a movie and returns the stored entry.
func (db *DB) AddDiaryEntry(ctx context.Context, e models.DiaryEntry) (*models.DiaryEntry, error) {
	start := time.Now()

	e.CreatedAt = time.Now().UTC()
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO diary_entries (user_id, movie_id, rating, watched_at, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		e.UserID, e.MovieID, nullableFloat(e.Rating), nullableTime(e.WatchedAt), e.CreatedAt).
		Scan(&e.ID)
	metrics.ObserveDBQuery("insert", "diary_entries", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to add diary entry for user %d: %w", e.UserID, err)
	}
	return &e, nil
}

// Ratings returns all standalone ratings for the user.
func (db *DB) Ratings(ctx context.Context, userID int64) ([]models.Rating, error) {
	start := time.Now()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, movie_id, score, rated_at
		 FROM ratings WHERE user_id = ? ORDER BY rated_at DESC, id DESC`, userID)
	metrics.ObserveDBQuery("select", "ratings", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings for user %d: %w", userID, err)
	}
	defer closeRows(rows)

	var ratings []models.Rating
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.ID, &r.UserID, &r.MovieID, &r.Score, &r.RatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rating row iteration failed: %w", err)
	}
	return ratings, nil
}

// SetRating upserts the user's standalone rating for a movie.
func (db *DB) SetRating(ctx context.Context, userID, movieID int64, score float64) error {
	start := time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO ratings (user_id, movie_id, score, rated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, movie_id) DO UPDATE SET score = excluded.score, rated_at = excluded.rated_at`,
		userID, movieID, score, time.Now().UTC())
	metrics.ObserveDBQuery("upsert", "ratings", start, err)
	if err != nil {
		return fmt.Errorf("failed to set rating for user %d movie %d: %w", userID, movieID, err)
	}
	return nil
}

// Watchlist returns the user's watchlist, newest first.
func (db *DB) Watchlist(ctx context.Context, userID int64) ([]models.WatchlistItem, error) {
	start := time.Now()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, movie_id, added_at FROM watchlist
		 WHERE user_id = ? ORDER BY added_at DESC, movie_id`, userID)
	metrics.ObserveDBQuery("select", "watchlist", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist for user %d: %w", userID, err)
	}
	defer closeRows(rows)

	var items []models.WatchlistItem
	for rows.Next() {
		var w models.WatchlistItem
		if err := rows.Scan(&w.UserID, &w.MovieID, &w.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("watchlist row iteration failed: %w", err)
	}
	return items, nil
}

// AddToWatchlist marks a movie as to-watch. Re-adding is a no-op.
func (db *DB) AddToWatchlist(ctx context.Context, userID, movieID int64) error {
	start := time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO watchlist (user_id, movie_id, added_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, movie_id) DO NOTHING`,
		userID, movieID, time.Now().UTC())
	metrics.ObserveDBQuery("upsert", "watchlist", start, err)
	if err != nil {
		return fmt.Errorf("failed to add movie %d to watchlist for user %d: %w", movieID, userID, err)
	}
	return nil
}

// RemoveFromWatchlist drops a movie from the user's watchlist.
func (db *DB) RemoveFromWatchlist(ctx context.Context, userID, movieID int64) error {
	start := time.Now()

	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM watchlist WHERE user_id = ? AND movie_id = ?`, userID, movieID)
	metrics.ObserveDBQuery("delete", "watchlist", start, err)
	if err != nil {
		return fmt.Errorf("failed to remove movie %d from watchlist for user %d: %w", movieID, userID, err)
	}
	return nil
}

// ExclusionSets returns the internal and external ids of every movie
// the user has rated, logged, or watchlisted. Candidates matching
// either set are filtered out of recommendation pools.
func (db *DB) ExclusionSets(ctx context.Context, userID int64) (map[int64]struct{}, map[int64]struct{}, error) {
	start := time.Now()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT m.id, m.external_id FROM movies m WHERE m.id IN (
			SELECT movie_id FROM diary_entries WHERE user_id = ?
			UNION
			SELECT movie_id FROM ratings WHERE user_id = ?
			UNION
			SELECT movie_id FROM watchlist WHERE user_id = ?
		)`, userID, userID, userID)
	metrics.ObserveDBQuery("select", "movies", start, err)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query exclusion sets for user %d: %w", userID, err)
	}
	defer closeRows(rows)

	internal := make(map[int64]struct{})
	external := make(map[int64]struct{})
	for rows.Next() {
		var id, externalID int64
		if err := rows.Scan(&id, &externalID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan exclusion row: %w", err)
		}
		internal[id] = struct{}{}
		if externalID != 0 {
			external[externalID] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("exclusion row iteration failed: %w", err)
	}
	return internal, external, nil
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
