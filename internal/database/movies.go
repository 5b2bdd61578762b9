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
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/jmawebb/cinematch/internal/logging"
	"github.com/jmawebb/cinematch/internal/metrics"
	"github.com/jmawebb/cinematch/internal/models"
)

const movieColumns = `id, external_id, title, release_date, genres, directors, cast_members,
	overview, poster_path, runtime, popularity, vote_average, vote_count, created_at, updated_at`

// InsertMovie stores a new movie and returns it with its id and
// timestamps populated.
func (db *DB) InsertMovie(ctx context.Context, m *models.Movie) (*models.Movie, error) {
	start := time.Now()

	genres, err := encodeNames(m.Genres)
	if err != nil {
		return nil, err
	}
	directors, err := encodeNames(m.Directors)
	if err != nil {
		return nil, err
	}
	castMembers, err := encodeNames(m.Cast)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := `INSERT INTO movies
		(external_id, title, release_date, genres, directors, cast_members,
		 overview, poster_path, runtime, popularity, vote_average, vote_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	stored := *m
	stored.CreatedAt = now
	stored.UpdatedAt = now

	err = db.conn.QueryRowContext(ctx, query,
		m.ExternalID, m.Title, nullableTime(m.ReleaseDate), genres, directors, castMembers,
		m.Overview, m.PosterPath, m.Runtime, m.Popularity, m.VoteAverage, m.VoteCount, now, now,
	).Scan(&stored.ID)
	metrics.ObserveDBQuery("insert", "movies", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to insert movie %q: %w", m.Title, err)
	}

	return &stored, nil
}

// UpdateMovie persists changes to an existing movie.
func (db *DB) UpdateMovie(ctx context.Context, m *models.Movie) error {
	start := time.Now()

	genres, err := encodeNames(m.Genres)
	if err != nil {
		return err
	}
	directors, err := encodeNames(m.Directors)
	if err != nil {
		return err
	}
	castMembers, err := encodeNames(m.Cast)
	if err != nil {
		return err
	}

	query := `UPDATE movies SET
		external_id = ?, title = ?, release_date = ?, genres = ?, directors = ?,
		cast_members = ?, overview = ?, poster_path = ?, runtime = ?, popularity = ?,
		vote_average = ?, vote_count = ?, updated_at = ?
		WHERE id = ?`

	res, err := db.conn.ExecContext(ctx, query,
		m.ExternalID, m.Title, nullableTime(m.ReleaseDate), genres, directors,
		castMembers, m.Overview, m.PosterPath, m.Runtime, m.Popularity,
		m.VoteAverage, m.VoteCount, time.Now().UTC(), m.ID)
	metrics.ObserveDBQuery("update", "movies", start, err)
	if err != nil {
		return fmt.Errorf("failed to update movie %d: %w", m.ID, err)
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("movie %d not found", m.ID)
	}
	return nil
}

// MovieByID returns the movie with the given internal id, or
// (nil, nil) when none exists.
func (db *DB) MovieByID(ctx context.Context, id int64) (*models.Movie, error) {
	start := time.Now()
	query := `SELECT ` + movieColumns + ` FROM movies WHERE id = ?`
	m, err := db.scanMovie(db.conn.QueryRowContext(ctx, query, id))
	metrics.ObserveDBQuery("select", "movies", start, err)
	return m, err
}

// MovieByExternalID returns the movie linked to a TMDB id, or
// (nil, nil) when none exists. External id 0 means "not linked" and
// never matches.
func (db *DB) MovieByExternalID(ctx context.Context, externalID int64) (*models.Movie, error) {
	if externalID == 0 {
		return nil, nil
	}
	start := time.Now()

	// Hot path during candidate generation: every external candidate
	// is looked up here, so the statement is prepared once and cached.
	query := `SELECT ` + movieColumns + ` FROM movies WHERE external_id = ? ORDER BY id LIMIT 1`
	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	m, err := db.scanMovie(stmt.QueryRowContext(ctx, externalID))
	metrics.ObserveDBQuery("select", "movies", start, err)
	return m, err
}

// PopularMovies returns catalog movies at or above the popularity
// floor, descending by popularity. A non-empty genres slice restricts
// results to movies matching any of the genres (match is
// case-insensitive against the stored genre list).
func (db *DB) PopularMovies(ctx context.Context, minPopularity float64, genres []string, limit int) ([]*models.Movie, error) {
	start := time.Now()

	query := `SELECT ` + movieColumns + ` FROM movies WHERE popularity >= ?`
	args := []any{minPopularity}

	if len(genres) > 0 {
		clauses := make([]string, 0, len(genres))
		for _, g := range genres {
			// Genres are stored as a JSON array of strings; a quoted
			// substring match is exact for genre names, which never
			// contain quotes.
			clauses = append(clauses, `lower(genres) LIKE ?`)
			args = append(args, `%"`+strings.ToLower(g)+`"%`)
		}
		query += ` AND (` + strings.Join(clauses, " OR ") + `)`
	}

	query += ` ORDER BY popularity DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.ObserveDBQuery("select", "movies", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query popular movies: %w", err)
	}
	defer closeRows(rows)

	return db.scanMovies(rows)
}

// TopRatedMovies returns the user's highest-rated movies, descending
// by score. Diary ratings and standalone ratings both count; when a
// movie has both, the higher score wins.
func (db *DB) TopRatedMovies(ctx context.Context, userID int64, limit int) ([]*models.Movie, error) {
	start := time.Now()

	query := `SELECT ` + movieColumns + ` FROM movies WHERE id IN (
			SELECT movie_id FROM (
				SELECT movie_id, max(score) AS score FROM (
					SELECT movie_id, rating AS score FROM diary_entries WHERE user_id = ? AND rating IS NOT NULL
					UNION ALL
					SELECT movie_id, score FROM ratings WHERE user_id = ?
				) GROUP BY movie_id ORDER BY score DESC, movie_id LIMIT ?
			)
		)`

	rows, err := db.conn.QueryContext(ctx, query, userID, userID, limit)
	metrics.ObserveDBQuery("select", "movies", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query top rated movies for user %d: %w", userID, err)
	}
	defer closeRows(rows)

	return db.scanMovies(rows)
}

// scanTarget abstracts *sql.Row and *sql.Rows for scanMovie.
type scanTarget interface {
	Scan(dest ...any) error
}

func (db *DB) scanMovie(row scanTarget) (*models.Movie, error) {
	var (
		m           models.Movie
		releaseDate sql.NullTime
		genres      string
		directors   string
		castMembers string
	)

	err := row.Scan(&m.ID, &m.ExternalID, &m.Title, &releaseDate, &genres, &directors,
		&castMembers, &m.Overview, &m.PosterPath, &m.Runtime, &m.Popularity,
		&m.VoteAverage, &m.VoteCount, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan movie row: %w", err)
	}

	if releaseDate.Valid {
		t := releaseDate.Time
		m.ReleaseDate = &t
	}
	m.Genres = decodeNames(genres)
	m.Directors = decodeNames(directors)
	m.Cast = decodeNames(castMembers)
	return &m, nil
}

func (db *DB) scanMovies(rows *sql.Rows) ([]*models.Movie, error) {
	var movies []*models.Movie
	for rows.Next() {
		m, err := db.scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("movie row iteration failed: %w", err)
	}
	return movies, nil
}

// encodeNames serializes a name list to its JSON column form.
// nil encodes as an empty array so columns stay NOT NULL.
func encodeNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("failed to encode name list: %w", err)
	}
	return string(data), nil
}

// decodeNames normalizes a stored name column. Rows written by this
// package hold JSON string arrays, but imported or hand-edited rows
// may hold TMDB credit-object arrays or comma-separated strings;
// ParseNameList accepts all three shapes.
func decodeNames(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	return models.ParseNameList(raw)
}

func nullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close result rows")
	}
}
