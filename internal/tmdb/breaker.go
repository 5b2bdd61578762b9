// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package tmdb

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jmawebb/cinematch/internal/logging"
	"github.com/jmawebb/cinematch/internal/metrics"
)

// BreakerSource wraps a Source with a circuit breaker so a failing or
// slow upstream stops consuming the rate gate and degrades candidate
// generation to local-only until the API recovers.
//
// The breaker uses real time for its interval and timeout; tests
// exercise the wrapped Source directly.
type BreakerSource struct {
	src Source
	cb  *gobreaker.CircuitBreaker[interface{}]
}

// NewBreakerSource wraps src with a circuit breaker.
//
// Settings: at most 3 probe requests in half-open state, counts reset
// every minute while closed, 2 minutes open before probing, trips at a
// 60% failure rate over at least 10 requests.
func NewBreakerSource(src Source) *BreakerSource {
	const name = "tmdb-api"

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &BreakerSource{src: src, cb: cb}
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// castResult type-casts a breaker result with error propagation.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// MovieDetail implements Source.
func (b *BreakerSource) MovieDetail(ctx context.Context, externalID int64) (*MovieDetail, error) {
	return castResult[*MovieDetail](b.cb.Execute(func() (interface{}, error) {
		return b.src.MovieDetail(ctx, externalID)
	}))
}

// SimilarMovies implements Source.
func (b *BreakerSource) SimilarMovies(ctx context.Context, externalID int64) ([]Movie, error) {
	return castResult[[]Movie](b.cb.Execute(func() (interface{}, error) {
		return b.src.SimilarMovies(ctx, externalID)
	}))
}

// Recommendations implements Source.
func (b *BreakerSource) Recommendations(ctx context.Context, externalID int64) ([]Movie, error) {
	return castResult[[]Movie](b.cb.Execute(func() (interface{}, error) {
		return b.src.Recommendations(ctx, externalID)
	}))
}

// SearchMovie implements Source.
func (b *BreakerSource) SearchMovie(ctx context.Context, query string, year int) ([]Movie, error) {
	return castResult[[]Movie](b.cb.Execute(func() (interface{}, error) {
		return b.src.SearchMovie(ctx, query, year)
	}))
}

// SearchPerson implements Source.
func (b *BreakerSource) SearchPerson(ctx context.Context, name string) ([]Person, error) {
	return castResult[[]Person](b.cb.Execute(func() (interface{}, error) {
		return b.src.SearchPerson(ctx, name)
	}))
}

// DiscoverByPerson implements Source.
func (b *BreakerSource) DiscoverByPerson(ctx context.Context, personID int64, role PersonRole) ([]Movie, error) {
	return castResult[[]Movie](b.cb.Execute(func() (interface{}, error) {
		return b.src.DiscoverByPerson(ctx, personID, role)
	}))
}

// DiscoverByGenres implements Source.
func (b *BreakerSource) DiscoverByGenres(ctx context.Context, genreIDs []int64) ([]Movie, error) {
	return castResult[[]Movie](b.cb.Execute(func() (interface{}, error) {
		return b.src.DiscoverByGenres(ctx, genreIDs)
	}))
}

// Genres implements Source.
func (b *BreakerSource) Genres(ctx context.Context) ([]Genre, error) {
	return castResult[[]Genre](b.cb.Execute(func() (interface{}, error) {
		return b.src.Genres(ctx)
	}))
}

// TrendingWeek implements Source.
func (b *BreakerSource) TrendingWeek(ctx context.Context) ([]Movie, error) {
	return castResult[[]Movie](b.cb.Execute(func() (interface{}, error) {
		return b.src.TrendingWeek(ctx)
	}))
}
