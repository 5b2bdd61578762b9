// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package recommend

import (
	"math"
	"testing"
	"time"

	"github.com/jmawebb/cinematch/internal/models"
)

func TestBuildUserVectorWeightedAverage(t *testing.T) {
	w := DefaultWeights()

	events := []models.ViewingEvent{
		{MovieID: 1, Rating: fptr(10)}, // 5 stars, weight 3
		{MovieID: 2, Rating: fptr(6)},  // 3 stars, weight 1
	}
	vectors := map[int64]Vector{
		1: {"genre:crime": 1.0},
		2: {"genre:drama": 1.0},
	}

	got := BuildUserVector(events, vectors, w, UserVectorOptions{})

	// (3*1.0)/(3+1) = 0.75 crime, (1*1.0)/4 = 0.25 drama
	if math.Abs(got["genre:crime"]-0.75) > 1e-9 {
		t.Errorf("crime weight = %f, want 0.75", got["genre:crime"])
	}
	if math.Abs(got["genre:drama"]-0.25) > 1e-9 {
		t.Errorf("drama weight = %f, want 0.25", got["genre:drama"])
	}
}

func TestBuildUserVectorSkipsDisliked(t *testing.T) {
	w := DefaultWeights()

	events := []models.ViewingEvent{
		{MovieID: 1, Rating: fptr(10)}, // 5 stars
		{MovieID: 2, Rating: fptr(2)},  // 1 star, weight 0
		{MovieID: 3, Rating: fptr(4)},  // 2 stars, weight 0
	}
	vectors := map[int64]Vector{
		1: {"genre:crime": 1.0},
		2: {"genre:horror": 1.0},
		3: {"genre:romance": 1.0},
	}

	got := BuildUserVector(events, vectors, w, UserVectorOptions{})
	if _, ok := got["genre:horror"]; ok {
		t.Error("1-star movie must not contribute to the profile")
	}
	if _, ok := got["genre:romance"]; ok {
		t.Error("2-star movie must not contribute to the profile")
	}
	if got["genre:crime"] != 1.0 {
		t.Errorf("crime weight = %f, want 1.0 (only surviving event)", got["genre:crime"])
	}
}

func TestBuildUserVectorUnratedContributes(t *testing.T) {
	w := DefaultWeights()

	events := []models.ViewingEvent{
		{MovieID: 1}, // seen, unrated
	}
	vectors := map[int64]Vector{
		1: {"genre:drama": 1.0},
	}

	got := BuildUserVector(events, vectors, w, UserVectorOptions{})
	if got["genre:drama"] != 1.0 {
		t.Errorf("drama weight = %f, want 1.0 from unrated event", got["genre:drama"])
	}
}

func TestBuildUserVectorEmptyIsValid(t *testing.T) {
	w := DefaultWeights()

	t.Run("no events", func(t *testing.T) {
		got := BuildUserVector(nil, nil, w, UserVectorOptions{})
		if got == nil || len(got) != 0 {
			t.Errorf("want empty non-nil vector, got %v", got)
		}
	})

	t.Run("all events disliked", func(t *testing.T) {
		events := []models.ViewingEvent{{MovieID: 1, Rating: fptr(2)}}
		vectors := map[int64]Vector{1: {"genre:horror": 1.0}}
		got := BuildUserVector(events, vectors, w, UserVectorOptions{})
		if len(got) != 0 {
			t.Errorf("want empty vector when every event weighs zero, got %v", got)
		}
	})

	t.Run("missing movie vectors", func(t *testing.T) {
		events := []models.ViewingEvent{{MovieID: 99, Rating: fptr(10)}}
		got := BuildUserVector(events, map[int64]Vector{}, w, UserVectorOptions{})
		if len(got) != 0 {
			t.Errorf("want empty vector when no movie vectors resolve, got %v", got)
		}
	})
}

func TestBuildUserVectorRecencyDecay(t *testing.T) {
	w := DefaultWeights()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -180) // one half-life span

	events := []models.ViewingEvent{
		{MovieID: 1, Rating: fptr(6), WatchedAt: &now}, // weight 1
		{MovieID: 2, Rating: fptr(6), WatchedAt: &old}, // weight exp(-1) with decay
	}
	vectors := map[int64]Vector{
		1: {"genre:crime": 1.0},
		2: {"genre:drama": 1.0},
	}

	decayed := BuildUserVector(events, vectors, w, UserVectorOptions{Decay: true, Now: now})
	oldWeight := math.Exp(-1)
	total := 1 + oldWeight
	if math.Abs(decayed["genre:crime"]-1/total) > 1e-9 {
		t.Errorf("crime weight = %f, want %f", decayed["genre:crime"], 1/total)
	}
	if math.Abs(decayed["genre:drama"]-oldWeight/total) > 1e-9 {
		t.Errorf("drama weight = %f, want %f", decayed["genre:drama"], oldWeight/total)
	}

	flat := BuildUserVector(events, vectors, w, UserVectorOptions{Decay: false, Now: now})
	if math.Abs(flat["genre:crime"]-0.5) > 1e-9 {
		t.Errorf("without decay crime weight = %f, want 0.5", flat["genre:crime"])
	}
}
