// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a recommendation run.
type RunStatus string

const (
	// RunStatusPending means the run is queued and not yet picked up.
	RunStatusPending RunStatus = "pending"

	// RunStatusInProgress means a worker has claimed the run.
	RunStatusInProgress RunStatus = "in_progress"

	// RunStatusCompleted means the run finished and its payload is set.
	RunStatusCompleted RunStatus = "completed"

	// RunStatusFailed means the run aborted; ErrorMessage holds the cause.
	RunStatusFailed RunStatus = "failed"
)

// Valid reports whether s is a known run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusInProgress, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is an end state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// CanTransitionTo reports whether the status may move to next.
// The only legal paths are pending -> in_progress and
// in_progress -> completed|failed.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusPending:
		return next == RunStatusInProgress
	case RunStatusInProgress:
		return next == RunStatusCompleted || next == RunStatusFailed
	}
	return false
}

// RecommendationRun is the persisted record of one asynchronous
// recommendation computation. The request layer creates it pending and
// polls it; the worker moves it through the lifecycle.
type RecommendationRun struct {
	ID            string     `json:"id" db:"id"` // UUID
	UserID        int64      `json:"user_id" db:"user_id"`
	Status        RunStatus  `json:"status" db:"status"`
	Limit         int        `json:"limit" db:"result_limit"`
	Payload       []byte     `json:"-" db:"payload"` // serialized []MovieSummary
	CorrelationID string     `json:"correlation_id,omitempty" db:"correlation_id"`
	ErrorMessage  string     `json:"error,omitempty" db:"error_message"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Transition validates and applies a status change in memory.
// Persistence is the caller's responsibility.
func (r *RecommendationRun) Transition(next RunStatus) error {
	if !next.Valid() {
		return fmt.Errorf("unknown run status %q", next)
	}
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("invalid run transition %s -> %s for run %s", r.Status, next, r.ID)
	}
	r.Status = next
	r.UpdatedAt = time.Now().UTC()
	if next.Terminal() {
		now := r.UpdatedAt
		r.CompletedAt = &now
	}
	return nil
}
