// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

// Package runs executes recommendation runs in the background: a
// worker pool fed by run.requested events, plus a janitor that fails
// runs abandoned by a crashed worker.
package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/jmawebb/cinematch/internal/config"
	"github.com/jmawebb/cinematch/internal/database"
	"github.com/jmawebb/cinematch/internal/events"
	"github.com/jmawebb/cinematch/internal/logging"
	"github.com/jmawebb/cinematch/internal/metrics"
	"github.com/jmawebb/cinematch/internal/models"
	"github.com/jmawebb/cinematch/internal/recommend"
)

// RunStore is the run persistence the worker needs. *database.DB
// satisfies it.
type RunStore interface {
	ClaimRun(ctx context.Context, id, correlationID string) (*models.RecommendationRun, error)
	CompleteRun(ctx context.Context, id string, payload []byte) error
	FailRun(ctx context.Context, id string, cause string) error
	PendingRunIDs(ctx context.Context) ([]string, error)
	ReapStaleRuns(ctx context.Context, staleAfter time.Duration) (int64, error)
}

// MovieRecommender produces the ranked list for one user.
type MovieRecommender interface {
	RecommendMoviesFor(ctx context.Context, userID int64, limit int) ([]recommend.ScoredMovie, error)
}

// ProfileInvalidator drops a user's cached profile vector.
type ProfileInvalidator interface {
	InvalidateUser(userID int64) error
}

// job is one unit of work for the pool.
type job struct {
	runID         string
	correlationID string
}

// Worker consumes run.requested events and executes runs. It
// implements suture.Service.
type Worker struct {
	cfg         config.WorkerConfig
	store       RunStore
	recommender MovieRecommender
	bus         *events.Bus
	profiles    ProfileInvalidator
	logger      zerolog.Logger
}

// NewWorker wires the run worker. profiles may be nil when no
// embedding cache is in play (tests).
func NewWorker(cfg config.WorkerConfig, store RunStore, recommender MovieRecommender, bus *events.Bus, profiles ProfileInvalidator) *Worker {
	return &Worker{
		cfg:         cfg,
		store:       store,
		recommender: recommender,
		bus:         bus,
		profiles:    profiles,
		logger:      logging.WithComponent("runs"),
	}
}

// Serve runs the pool until ctx is cancelled. Pending runs left over
// from a previous process are re-enqueued before new events are
// consumed, so a restart loses no queued work.
func (w *Worker) Serve(ctx context.Context) error {
	runMsgs, err := w.bus.SubscribeRunRequested(ctx)
	if err != nil {
		return fmt.Errorf("subscribe run.requested: %w", err)
	}
	historyMsgs, err := w.bus.SubscribeHistoryChanged(ctx)
	if err != nil {
		return fmt.Errorf("subscribe history.changed: %w", err)
	}

	concurrency := w.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	jobs := make(chan job)

	// runErrs carries the first run failure out of the pool so it
	// reaches the supervisor. Later failures are already persisted on
	// their runs and are only logged.
	runErrs := make(chan error, 1)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := w.execute(ctx, j); err != nil {
					select {
					case runErrs <- err:
					default:
					}
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reapLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.invalidateLoop(ctx, historyMsgs)
	}()

	w.logger.Info().Int("concurrency", concurrency).Msg("Run worker started")

	err = w.dispatch(ctx, runMsgs, jobs, runErrs)
	close(jobs)
	wg.Wait()
	return err
}

// dispatch feeds the pool: first the backlog, then live events. A run
// failure reported by the pool ends the dispatch loop so the error
// reaches the supervisor.
func (w *Worker) dispatch(ctx context.Context, msgs <-chan *message.Message, jobs chan<- job, runErrs <-chan error) error {
	pending, err := w.store.PendingRunIDs(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to load pending run backlog")
	}
	for _, id := range pending {
		select {
		case jobs <- job{runID: id}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if len(pending) > 0 {
		w.logger.Info().Int("count", len(pending)).Msg("Re-enqueued pending runs from previous process")
	}

	for {
		select {
		case err := <-runErrs:
			return err
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("run.requested subscription closed")
			}
			ev, err := events.DecodeRunRequested(msg)
			if err != nil {
				w.logger.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable run request")
				msg.Ack()
				continue
			}
			j := job{runID: ev.RunID, correlationID: events.MessageCorrelationID(msg)}
			select {
			case jobs <- j:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// execute claims and runs one recommendation run. A missing run id and
// a lost claim race are both silent no-ops; every other failure marks
// the run failed with the cause and returns the error so the
// supervisor sees the failure.
func (w *Worker) execute(ctx context.Context, j job) error {
	if j.correlationID == "" {
		j.correlationID = logging.GenerateCorrelationID()
	}

	run, err := w.store.ClaimRun(ctx, j.runID, j.correlationID)
	if err != nil {
		if errors.Is(err, database.ErrRunNotClaimable) {
			w.logger.Debug().Str("run_id", j.runID).Msg("Run already claimed or finished")
			return nil
		}
		w.logger.Error().Err(err).Str("run_id", j.runID).Msg("Failed to claim run")
		return fmt.Errorf("claim run %s: %w", j.runID, err)
	}
	if run == nil {
		w.logger.Debug().Str("run_id", j.runID).Msg("Run request references unknown run")
		return nil
	}
	metrics.RunsPending.Dec()

	// The claim resolved the winning correlation id: the one stored at
	// creation, or ours for a replayed run that had none.
	ctx = logging.ContextWithCorrelationID(ctx, run.CorrelationID)
	logger := w.logger.With().Str("run_id", run.ID).Str("correlation_id", run.CorrelationID).Logger()

	start := time.Now()
	scored, err := w.recommender.RecommendMoviesFor(ctx, run.UserID, run.Limit)
	if err != nil {
		return w.fail(ctx, logger, run, err)
	}

	movies := make([]*models.Movie, 0, len(scored))
	for _, s := range scored {
		movies = append(movies, s.Movie)
	}
	payload, err := json.Marshal(models.SummarizeAll(movies))
	if err != nil {
		return w.fail(ctx, logger, run, fmt.Errorf("serialize run payload: %w", err))
	}

	if err := w.store.CompleteRun(ctx, run.ID, payload); err != nil {
		logger.Error().Err(err).Msg("Failed to persist completed run")
		metrics.RunsTotal.WithLabelValues(string(models.RunStatusFailed)).Inc()
		return fmt.Errorf("complete run %s: %w", run.ID, err)
	}

	metrics.RunsTotal.WithLabelValues(string(models.RunStatusCompleted)).Inc()
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	logger.Info().
		Int64("user_id", run.UserID).
		Int("results", len(movies)).
		Dur("duration", time.Since(start)).
		Msg("Run completed")
	return nil
}

// fail persists the failed state and hands the cause back to the
// caller.
func (w *Worker) fail(ctx context.Context, logger zerolog.Logger, run *models.RecommendationRun, cause error) error {
	logger.Error().Err(cause).Int64("user_id", run.UserID).Msg("Run failed")
	if err := w.store.FailRun(ctx, run.ID, cause.Error()); err != nil {
		logger.Error().Err(err).Msg("Failed to persist failed run")
	}
	metrics.RunsTotal.WithLabelValues(string(models.RunStatusFailed)).Inc()
	return fmt.Errorf("run %s: %w", run.ID, cause)
}

// reapLoop periodically fails in_progress runs older than StaleAfter.
func (w *Worker) reapLoop(ctx context.Context) {
	interval := w.cfg.ReapInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	staleAfter := w.cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			reaped, err := w.store.ReapStaleRuns(ctx, staleAfter)
			if err != nil {
				w.logger.Error().Err(err).Msg("Stale run sweep failed")
				continue
			}
			if reaped > 0 {
				w.logger.Warn().Int64("count", reaped).Msg("Reaped stale runs")
			}
		case <-ctx.Done():
			return
		}
	}
}

// invalidateLoop drops cached profiles when history changes.
func (w *Worker) invalidateLoop(ctx context.Context, msgs <-chan *message.Message) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ev, err := events.DecodeHistoryChanged(msg)
			if err != nil {
				w.logger.Error().Err(err).Msg("Dropping undecodable history change")
				msg.Ack()
				continue
			}
			if w.profiles != nil {
				if err := w.profiles.InvalidateUser(ev.UserID); err != nil {
					w.logger.Error().Err(err).Int64("user_id", ev.UserID).Msg("Failed to invalidate profile")
				}
			}
			msg.Ack()
		case <-ctx.Done():
			return
		}
	}
}
