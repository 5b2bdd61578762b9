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

// ErrRunNotClaimable is returned by ClaimRun when the run exists but is
// no longer pending. Callers treat it as "someone else got there first".
var ErrRunNotClaimable = errors.New("run is not pending")

const runColumns = `id, user_id, status, result_limit, payload, correlation_id,
	error_message, created_at, updated_at, completed_at`

// CreateRun persists a new pending run.
func (db *DB) CreateRun(ctx context.Context, run *models.RecommendationRun) error {
	start := time.Now()

	now := time.Now().UTC()
	run.Status = models.RunStatusPending
	run.CreatedAt = now
	run.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO recommendation_runs
		 (id, user_id, status, result_limit, payload, correlation_id, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)`,
		run.ID, run.UserID, run.Status, run.Limit, run.Payload, run.CorrelationID,
		run.CreatedAt, run.UpdatedAt)
	metrics.ObserveDBQuery("insert", "recommendation_runs", start, err)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// RunByID returns the run with the given id, or (nil, nil) when none
// exists.
func (db *DB) RunByID(ctx context.Context, id string) (*models.RecommendationRun, error) {
	start := time.Now()
	query := `SELECT ` + runColumns + ` FROM recommendation_runs WHERE id = ?`
	run, err := db.scanRun(db.conn.QueryRowContext(ctx, query, id))
	metrics.ObserveDBQuery("select", "recommendation_runs", start, err)
	return run, err
}

// ClaimRun atomically moves a pending run to in_progress and returns
// it. A run created without a correlation id (backlog replay after a
// restart) adopts the claimer's id so the stored row and the worker
// logs agree. Returns ErrRunNotClaimable when the run is in any other
// state, and (nil, nil) when the run does not exist. The status guard
// in the WHERE clause makes concurrent claims safe: exactly one worker
// wins.
func (db *DB) ClaimRun(ctx context.Context, id, correlationID string) (*models.RecommendationRun, error) {
	start := time.Now()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE recommendation_runs SET status = ?, updated_at = ?,
		   correlation_id = CASE WHEN correlation_id = '' THEN ? ELSE correlation_id END
		 WHERE id = ? AND status = ?`,
		models.RunStatusInProgress, time.Now().UTC(), correlationID, id, models.RunStatusPending)
	metrics.ObserveDBQuery("update", "recommendation_runs", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to claim run %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check claim of run %s: %w", id, err)
	}
	if rows == 0 {
		run, err := db.RunByID(ctx, id)
		if err != nil || run == nil {
			return nil, err
		}
		return nil, fmt.Errorf("claim run %s in state %s: %w", id, run.Status, ErrRunNotClaimable)
	}

	return db.RunByID(ctx, id)
}

// CompleteRun moves an in_progress run to completed and stores its
// serialized result payload.
func (db *DB) CompleteRun(ctx context.Context, id string, payload []byte) error {
	return db.finishRun(ctx, id, models.RunStatusCompleted, payload, "")
}

// FailRun moves an in_progress run to failed and records the cause.
func (db *DB) FailRun(ctx context.Context, id string, cause string) error {
	return db.finishRun(ctx, id, models.RunStatusFailed, nil, cause)
}

func (db *DB) finishRun(ctx context.Context, id string, status models.RunStatus, payload []byte, errorMessage string) error {
	start := time.Now()

	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE recommendation_runs
		 SET status = ?, payload = ?, error_message = ?, updated_at = ?, completed_at = ?
		 WHERE id = ? AND status = ?`,
		status, payload, errorMessage, now, now, id, models.RunStatusInProgress)
	metrics.ObserveDBQuery("update", "recommendation_runs", start, err)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check finish of run %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s is not in progress, cannot move to %s", id, status)
	}
	return nil
}

// LatestCompletedRun returns the user's most recent completed run, or
// (nil, nil) when there is none.
func (db *DB) LatestCompletedRun(ctx context.Context, userID int64) (*models.RecommendationRun, error) {
	start := time.Now()
	query := `SELECT ` + runColumns + ` FROM recommendation_runs
		WHERE user_id = ? AND status = ?
		ORDER BY completed_at DESC LIMIT 1`
	run, err := db.scanRun(db.conn.QueryRowContext(ctx, query, userID, models.RunStatusCompleted))
	metrics.ObserveDBQuery("select", "recommendation_runs", start, err)
	return run, err
}

// PendingRunIDs returns ids of pending runs oldest first, used to
// re-enqueue work left over from a previous process.
func (db *DB) PendingRunIDs(ctx context.Context) ([]string, error) {
	start := time.Now()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM recommendation_runs WHERE status = ? ORDER BY created_at`,
		models.RunStatusPending)
	metrics.ObserveDBQuery("select", "recommendation_runs", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending runs: %w", err)
	}
	defer closeRows(rows)

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run id iteration failed: %w", err)
	}
	return ids, nil
}

// ReapStaleRuns fails in_progress runs not updated since the cutoff.
// These are runs orphaned by a crashed or restarted worker; failing
// them keeps pollers from waiting forever. Returns how many were
// reaped.
func (db *DB) ReapStaleRuns(ctx context.Context, staleAfter time.Duration) (int64, error) {
	start := time.Now()

	now := time.Now().UTC()
	cutoff := now.Add(-staleAfter)
	res, err := db.conn.ExecContext(ctx,
		`UPDATE recommendation_runs
		 SET status = ?, error_message = ?, updated_at = ?, completed_at = ?
		 WHERE status = ? AND updated_at < ?`,
		models.RunStatusFailed, "run abandoned by worker", now, now,
		models.RunStatusInProgress, cutoff)
	metrics.ObserveDBQuery("update", "recommendation_runs", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale runs: %w", err)
	}

	reaped, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reaped runs: %w", err)
	}
	if reaped > 0 {
		metrics.RunsReaped.Add(float64(reaped))
	}
	return reaped, nil
}

func (db *DB) scanRun(row scanTarget) (*models.RecommendationRun, error) {
	var (
		run         models.RecommendationRun
		payload     []byte
		completedAt sql.NullTime
	)

	err := row.Scan(&run.ID, &run.UserID, &run.Status, &run.Limit, &payload,
		&run.CorrelationID, &run.ErrorMessage, &run.CreatedAt, &run.UpdatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run row: %w", err)
	}

	run.Payload = payload
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}
