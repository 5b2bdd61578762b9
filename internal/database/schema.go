// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmawebb/cinematch/internal/logging"
)

// getSequenceCreationQueries returns the id sequences backing the
// integer primary keys. DuckDB has no AUTO_INCREMENT; sequences with
// DEFAULT nextval() are the supported equivalent.
func getSequenceCreationQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_user_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_movie_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_diary_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_rating_id START 1`,
	}
}

// getTableCreationQueries returns all table DDL. List-valued movie
// fields (genres, directors, cast) are stored as JSON text and
// round-tripped through accessors, so query code only sees []string.
func getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_user_id'),
			username VARCHAR NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS movies (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_movie_id'),
			external_id BIGINT NOT NULL DEFAULT 0,
			title VARCHAR NOT NULL,
			release_date TIMESTAMP,
			genres VARCHAR NOT NULL DEFAULT '[]',
			directors VARCHAR NOT NULL DEFAULT '[]',
			cast_members VARCHAR NOT NULL DEFAULT '[]',
			overview VARCHAR NOT NULL DEFAULT '',
			poster_path VARCHAR NOT NULL DEFAULT '',
			runtime INTEGER NOT NULL DEFAULT 0,
			popularity DOUBLE NOT NULL DEFAULT 0,
			vote_average DOUBLE NOT NULL DEFAULT 0,
			vote_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS diary_entries (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_diary_id'),
			user_id BIGINT NOT NULL,
			movie_id BIGINT NOT NULL,
			rating DOUBLE,
			watched_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS ratings (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_rating_id'),
			user_id BIGINT NOT NULL,
			movie_id BIGINT NOT NULL,
			score DOUBLE NOT NULL,
			rated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, movie_id)
		)`,

		`CREATE TABLE IF NOT EXISTS watchlist (
			user_id BIGINT NOT NULL,
			movie_id BIGINT NOT NULL,
			added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, movie_id)
		)`,

		`CREATE TABLE IF NOT EXISTS recommendation_runs (
			id VARCHAR PRIMARY KEY,
			user_id BIGINT NOT NULL,
			status VARCHAR NOT NULL,
			result_limit INTEGER NOT NULL,
			payload BLOB,
			correlation_id VARCHAR NOT NULL DEFAULT '',
			error_message VARCHAR NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP
		)`,
	}
}

// getIndexCreationQueries returns secondary indexes for the hot query
// paths: external-id lookups, per-user history scans and the worker's
// pending/stale run scans.
func getIndexCreationQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_movies_external_id ON movies(external_id)`,
		`CREATE INDEX IF NOT EXISTS idx_movies_popularity ON movies(popularity)`,
		`CREATE INDEX IF NOT EXISTS idx_diary_user ON diary_entries(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_user ON ratings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_user ON recommendation_runs(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON recommendation_runs(status)`,
	}
}

// createSchema runs all DDL in order: sequences, tables, indexes.
// Every statement is idempotent so startup after a crash is safe.
func (db *DB) createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, queries := range [][]string{
		getSequenceCreationQueries(),
		getTableCreationQueries(),
		getIndexCreationQueries(),
	} {
		for _, query := range queries {
			if _, err := db.conn.ExecContext(ctx, query); err != nil {
				return fmt.Errorf("failed to execute schema statement: %w", err)
			}
		}
	}

	logger := logging.WithComponent("database")
	logger.Debug().Msg("Schema initialized")
	return nil
}
