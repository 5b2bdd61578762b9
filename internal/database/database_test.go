// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jmawebb/cinematch/internal/config"
	"github.com/jmawebb/cinematch/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{Path: ":memory:", Threads: 2, MaxMemory: "256MB"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})
	return db
}

func mustInsertMovie(t *testing.T, db *DB, m *models.Movie) *models.Movie {
	t.Helper()
	stored, err := db.InsertMovie(context.Background(), m)
	if err != nil {
		t.Fatalf("InsertMovie(%q) failed: %v", m.Title, err)
	}
	return stored
}

func mustCreateUser(t *testing.T, db *DB, username string) *models.User {
	t.Helper()
	u, err := db.CreateUser(context.Background(), username)
	if err != nil {
		t.Fatalf("CreateUser(%q) failed: %v", username, err)
	}
	return u
}

func TestInsertMovieRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	release := time.Date(1994, 9, 23, 0, 0, 0, 0, time.UTC)
	stored := mustInsertMovie(t, db, &models.Movie{
		ExternalID:  278,
		Title:       "The Shawshank Redemption",
		ReleaseDate: &release,
		Genres:      []string{"Drama", "Crime"},
		Directors:   []string{"Frank Darabont"},
		Cast:        []string{"Tim Robbins", "Morgan Freeman"},
		Overview:    "Two imprisoned men bond over a number of years.",
		PosterPath:  "/q6y0Go1tsGEsmtFryDOJo3dEmqu.jpg",
		Runtime:     142,
		Popularity:  88.5,
		VoteAverage: 8.7,
		VoteCount:   25000,
	})

	if stored.ID == 0 {
		t.Fatal("expected non-zero id after insert")
	}

	got, err := db.MovieByID(ctx, stored.ID)
	if err != nil {
		t.Fatalf("MovieByID(%d) failed: %v", stored.ID, err)
	}
	if got == nil {
		t.Fatalf("MovieByID(%d) returned nil", stored.ID)
	}
	if got.Title != stored.Title {
		t.Errorf("title = %q, want %q", got.Title, stored.Title)
	}
	if len(got.Genres) != 2 || got.Genres[0] != "Drama" {
		t.Errorf("genres = %v, want [Drama Crime]", got.Genres)
	}
	if len(got.Cast) != 2 || got.Cast[1] != "Morgan Freeman" {
		t.Errorf("cast = %v, want [Tim Robbins Morgan Freeman]", got.Cast)
	}
	if got.ReleaseDate == nil || got.ReleaseDate.Year() != 1994 {
		t.Errorf("release date = %v, want 1994", got.ReleaseDate)
	}
	if got.Decade() != 1990 {
		t.Errorf("decade = %d, want 1990", got.Decade())
	}
}

func TestMovieNameColumnsAcceptLooseShapes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m := mustInsertMovie(t, db, &models.Movie{Title: "Seven Samurai"})

	// Imported rows may carry credit-object arrays or comma-separated
	// strings instead of the JSON string arrays this package writes.
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE movies SET genres = ?, directors = ?, cast_members = ? WHERE id = ?`,
		`Action, Drama`,
		`[{"name":"Akira Kurosawa"}]`,
		`["Toshiro Mifune","Takashi Shimura"]`,
		m.ID); err != nil {
		t.Fatalf("raw update failed: %v", err)
	}

	got, err := db.MovieByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("MovieByID failed: %v", err)
	}
	if len(got.Genres) != 2 || got.Genres[0] != "Action" || got.Genres[1] != "Drama" {
		t.Errorf("genres = %v, want [Action Drama]", got.Genres)
	}
	if len(got.Directors) != 1 || got.Directors[0] != "Akira Kurosawa" {
		t.Errorf("directors = %v, want [Akira Kurosawa]", got.Directors)
	}
	if len(got.Cast) != 2 || got.Cast[0] != "Toshiro Mifune" {
		t.Errorf("cast = %v, want [Toshiro Mifune Takashi Shimura]", got.Cast)
	}
}

func TestMovieByExternalID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mustInsertMovie(t, db, &models.Movie{Title: "Linked", ExternalID: 603})
	mustInsertMovie(t, db, &models.Movie{Title: "Unlinked"})

	got, err := db.MovieByExternalID(ctx, 603)
	if err != nil {
		t.Fatalf("MovieByExternalID(603) failed: %v", err)
	}
	if got == nil || got.Title != "Linked" {
		t.Fatalf("MovieByExternalID(603) = %+v, want Linked", got)
	}

	got, err = db.MovieByExternalID(ctx, 999999)
	if err != nil || got != nil {
		t.Fatalf("MovieByExternalID(absent) = %+v, %v; want nil, nil", got, err)
	}

	// External id 0 means "not linked" and must never match the
	// unlinked row.
	got, err = db.MovieByExternalID(ctx, 0)
	if err != nil || got != nil {
		t.Fatalf("MovieByExternalID(0) = %+v, %v; want nil, nil", got, err)
	}
}

func TestUpdateMovie(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stored := mustInsertMovie(t, db, &models.Movie{Title: "Sparse"})
	stored.Overview = "Now with an overview."
	stored.Genres = []string{"Thriller"}
	stored.Popularity = 12.0

	if err := db.UpdateMovie(ctx, stored); err != nil {
		t.Fatalf("UpdateMovie failed: %v", err)
	}

	got, err := db.MovieByID(ctx, stored.ID)
	if err != nil {
		t.Fatalf("MovieByID failed: %v", err)
	}
	if got.Overview != "Now with an overview." {
		t.Errorf("overview = %q, not updated", got.Overview)
	}
	if len(got.Genres) != 1 || got.Genres[0] != "Thriller" {
		t.Errorf("genres = %v, want [Thriller]", got.Genres)
	}

	missing := &models.Movie{ID: 99999, Title: "Ghost"}
	if err := db.UpdateMovie(ctx, missing); err == nil {
		t.Error("UpdateMovie on missing row should fail")
	}
}

func TestPopularMovies(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mustInsertMovie(t, db, &models.Movie{Title: "Big Drama", Popularity: 50, Genres: []string{"Drama"}})
	mustInsertMovie(t, db, &models.Movie{Title: "Big Action", Popularity: 80, Genres: []string{"Action"}})
	mustInsertMovie(t, db, &models.Movie{Title: "Obscure", Popularity: 2, Genres: []string{"Drama"}})

	got, err := db.PopularMovies(ctx, 10, nil, 100)
	if err != nil {
		t.Fatalf("PopularMovies failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d movies above floor, want 2", len(got))
	}
	if got[0].Title != "Big Action" {
		t.Errorf("first movie = %q, want highest popularity first", got[0].Title)
	}

	got, err = db.PopularMovies(ctx, 10, []string{"drama"}, 100)
	if err != nil {
		t.Fatalf("PopularMovies with genre failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Big Drama" {
		t.Fatalf("genre filter returned %d movies, want only Big Drama", len(got))
	}
}

func TestTopRatedMovies(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "alice")
	low := mustInsertMovie(t, db, &models.Movie{Title: "Fine"})
	mid := mustInsertMovie(t, db, &models.Movie{Title: "Good"})
	high := mustInsertMovie(t, db, &models.Movie{Title: "Great"})

	rating := 6.0
	watched := time.Now().UTC().Add(-24 * time.Hour)
	if _, err := db.AddDiaryEntry(ctx, models.DiaryEntry{
		UserID: u.ID, MovieID: low.ID, Rating: &rating, WatchedAt: &watched,
	}); err != nil {
		t.Fatalf("AddDiaryEntry failed: %v", err)
	}
	if err := db.SetRating(ctx, u.ID, mid.ID, 8); err != nil {
		t.Fatalf("SetRating failed: %v", err)
	}
	if err := db.SetRating(ctx, u.ID, high.ID, 10); err != nil {
		t.Fatalf("SetRating failed: %v", err)
	}

	got, err := db.TopRatedMovies(ctx, u.ID, 2)
	if err != nil {
		t.Fatalf("TopRatedMovies failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d movies, want 2", len(got))
	}
	ids := map[int64]bool{got[0].ID: true, got[1].ID: true}
	if !ids[high.ID] || !ids[mid.ID] {
		t.Errorf("top rated = %v, want Great and Good", ids)
	}
}

func TestExclusionSets(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "bob")
	logged := mustInsertMovie(t, db, &models.Movie{Title: "Logged", ExternalID: 100})
	rated := mustInsertMovie(t, db, &models.Movie{Title: "Rated"})
	listed := mustInsertMovie(t, db, &models.Movie{Title: "Listed", ExternalID: 300})
	mustInsertMovie(t, db, &models.Movie{Title: "Untouched", ExternalID: 400})

	if _, err := db.AddDiaryEntry(ctx, models.DiaryEntry{UserID: u.ID, MovieID: logged.ID}); err != nil {
		t.Fatalf("AddDiaryEntry failed: %v", err)
	}
	if err := db.SetRating(ctx, u.ID, rated.ID, 7); err != nil {
		t.Fatalf("SetRating failed: %v", err)
	}
	if err := db.AddToWatchlist(ctx, u.ID, listed.ID); err != nil {
		t.Fatalf("AddToWatchlist failed: %v", err)
	}

	internal, external, err := db.ExclusionSets(ctx, u.ID)
	if err != nil {
		t.Fatalf("ExclusionSets failed: %v", err)
	}
	if len(internal) != 3 {
		t.Errorf("internal set size = %d, want 3", len(internal))
	}
	if _, ok := internal[rated.ID]; !ok {
		t.Error("rated movie missing from internal set")
	}
	if len(external) != 2 {
		t.Errorf("external set size = %d, want 2 (unlinked movie has no external id)", len(external))
	}
	if _, ok := external[400]; ok {
		t.Error("untouched movie leaked into external set")
	}
}

func TestWatchlistRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "carol")
	m := mustInsertMovie(t, db, &models.Movie{Title: "Queued"})

	if err := db.AddToWatchlist(ctx, u.ID, m.ID); err != nil {
		t.Fatalf("AddToWatchlist failed: %v", err)
	}
	// Re-adding must not error or duplicate.
	if err := db.AddToWatchlist(ctx, u.ID, m.ID); err != nil {
		t.Fatalf("second AddToWatchlist failed: %v", err)
	}

	items, err := db.Watchlist(ctx, u.ID)
	if err != nil {
		t.Fatalf("Watchlist failed: %v", err)
	}
	if len(items) != 1 || items[0].MovieID != m.ID {
		t.Fatalf("watchlist = %+v, want single entry for movie %d", items, m.ID)
	}

	if err := db.RemoveFromWatchlist(ctx, u.ID, m.ID); err != nil {
		t.Fatalf("RemoveFromWatchlist failed: %v", err)
	}
	items, err = db.Watchlist(ctx, u.ID)
	if err != nil {
		t.Fatalf("Watchlist after remove failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("watchlist after remove = %+v, want empty", items)
	}
}

func TestSetRatingUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "dave")
	m := mustInsertMovie(t, db, &models.Movie{Title: "Rewatched"})

	if err := db.SetRating(ctx, u.ID, m.ID, 5); err != nil {
		t.Fatalf("SetRating failed: %v", err)
	}
	if err := db.SetRating(ctx, u.ID, m.ID, 9); err != nil {
		t.Fatalf("SetRating upsert failed: %v", err)
	}

	ratings, err := db.Ratings(ctx, u.ID)
	if err != nil {
		t.Fatalf("Ratings failed: %v", err)
	}
	if len(ratings) != 1 {
		t.Fatalf("got %d ratings, want 1 after upsert", len(ratings))
	}
	if ratings[0].Score != 9 {
		t.Errorf("score = %v, want 9", ratings[0].Score)
	}
}

func TestRunLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "erin")
	run := &models.RecommendationRun{
		ID:            uuid.NewString(),
		UserID:        u.ID,
		Limit:         25,
		CorrelationID: "abc12345",
	}
	if err := db.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	got, err := db.RunByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunByID failed: %v", err)
	}
	if got.Status != models.RunStatusPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}

	claimed, err := db.ClaimRun(ctx, run.ID, "")
	if err != nil {
		t.Fatalf("ClaimRun failed: %v", err)
	}
	if claimed.Status != models.RunStatusInProgress {
		t.Fatalf("claimed status = %s, want in_progress", claimed.Status)
	}

	// A second claim must lose.
	if _, err := db.ClaimRun(ctx, run.ID, ""); !errors.Is(err, ErrRunNotClaimable) {
		t.Fatalf("second ClaimRun err = %v, want ErrRunNotClaimable", err)
	}

	payload := []byte(`[{"id":1}]`)
	if err := db.CompleteRun(ctx, run.ID, payload); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	got, err = db.RunByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunByID after complete failed: %v", err)
	}
	if got.Status != models.RunStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if string(got.Payload) != string(payload) {
		t.Errorf("payload = %q, want %q", got.Payload, payload)
	}
	if got.CompletedAt == nil {
		t.Error("completed run has no completed_at")
	}

	// Terminal runs cannot be finished again.
	if err := db.FailRun(ctx, run.ID, "too late"); err == nil {
		t.Error("FailRun on completed run should fail")
	}
}

func TestClaimRunMissing(t *testing.T) {
	db := newTestDB(t)

	got, err := db.ClaimRun(context.Background(), uuid.NewString(), "")
	if err != nil || got != nil {
		t.Fatalf("ClaimRun(missing) = %+v, %v; want nil, nil", got, err)
	}
}

func TestClaimRunCorrelationID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := mustCreateUser(t, db, "gwen")

	t.Run("empty id adopts the claimer's", func(t *testing.T) {
		run := &models.RecommendationRun{ID: uuid.NewString(), UserID: u.ID, Limit: 10}
		if err := db.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
		claimed, err := db.ClaimRun(ctx, run.ID, "replay123")
		if err != nil {
			t.Fatalf("ClaimRun failed: %v", err)
		}
		if claimed.CorrelationID != "replay123" {
			t.Errorf("correlation id = %q, want replay123", claimed.CorrelationID)
		}
	})

	t.Run("existing id wins", func(t *testing.T) {
		run := &models.RecommendationRun{ID: uuid.NewString(), UserID: u.ID, Limit: 10, CorrelationID: "orig5678"}
		if err := db.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
		claimed, err := db.ClaimRun(ctx, run.ID, "replay123")
		if err != nil {
			t.Fatalf("ClaimRun failed: %v", err)
		}
		if claimed.CorrelationID != "orig5678" {
			t.Errorf("correlation id = %q, want orig5678", claimed.CorrelationID)
		}
	})
}

func TestFailRunRecordsCause(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "frank")
	run := &models.RecommendationRun{ID: uuid.NewString(), UserID: u.ID, Limit: 10}
	if err := db.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if _, err := db.ClaimRun(ctx, run.ID, ""); err != nil {
		t.Fatalf("ClaimRun failed: %v", err)
	}
	if err := db.FailRun(ctx, run.ID, "profile is empty"); err != nil {
		t.Fatalf("FailRun failed: %v", err)
	}

	got, err := db.RunByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunByID failed: %v", err)
	}
	if got.Status != models.RunStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.ErrorMessage != "profile is empty" {
		t.Errorf("error message = %q", got.ErrorMessage)
	}
}

func TestLatestCompletedRun(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "grace")

	got, err := db.LatestCompletedRun(ctx, u.ID)
	if err != nil || got != nil {
		t.Fatalf("LatestCompletedRun(no runs) = %+v, %v; want nil, nil", got, err)
	}

	for _, payload := range []string{`["first"]`, `["second"]`} {
		run := &models.RecommendationRun{ID: uuid.NewString(), UserID: u.ID, Limit: 5}
		if err := db.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
		if _, err := db.ClaimRun(ctx, run.ID, ""); err != nil {
			t.Fatalf("ClaimRun failed: %v", err)
		}
		if err := db.CompleteRun(ctx, run.ID, []byte(payload)); err != nil {
			t.Fatalf("CompleteRun failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	got, err = db.LatestCompletedRun(ctx, u.ID)
	if err != nil {
		t.Fatalf("LatestCompletedRun failed: %v", err)
	}
	if got == nil || string(got.Payload) != `["second"]` {
		t.Fatalf("latest payload = %s, want the second run", got.Payload)
	}
}

func TestReapStaleRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "heidi")

	stale := &models.RecommendationRun{ID: uuid.NewString(), UserID: u.ID, Limit: 5}
	fresh := &models.RecommendationRun{ID: uuid.NewString(), UserID: u.ID, Limit: 5}
	pending := &models.RecommendationRun{ID: uuid.NewString(), UserID: u.ID, Limit: 5}
	for _, run := range []*models.RecommendationRun{stale, fresh, pending} {
		if err := db.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}
	for _, id := range []string{stale.ID, fresh.ID} {
		if _, err := db.ClaimRun(ctx, id, ""); err != nil {
			t.Fatalf("ClaimRun failed: %v", err)
		}
	}

	// Backdate the stale run past the cutoff.
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE recommendation_runs SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-2*time.Hour), stale.ID); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	reaped, err := db.ReapStaleRuns(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("ReapStaleRuns failed: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("reaped = %d, want 1", reaped)
	}

	got, err := db.RunByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("RunByID failed: %v", err)
	}
	if got.Status != models.RunStatusFailed {
		t.Errorf("stale run status = %s, want failed", got.Status)
	}

	for _, tc := range []struct {
		id   string
		want models.RunStatus
	}{
		{fresh.ID, models.RunStatusInProgress},
		{pending.ID, models.RunStatusPending},
	} {
		got, err := db.RunByID(ctx, tc.id)
		if err != nil {
			t.Fatalf("RunByID failed: %v", err)
		}
		if got.Status != tc.want {
			t.Errorf("run %s status = %s, want %s", tc.id, got.Status, tc.want)
		}
	}
}

func TestPendingRunIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "ivan")
	first := &models.RecommendationRun{ID: uuid.NewString(), UserID: u.ID, Limit: 5}
	second := &models.RecommendationRun{ID: uuid.NewString(), UserID: u.ID, Limit: 5}
	if err := db.CreateRun(ctx, first); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := db.CreateRun(ctx, second); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	ids, err := db.PendingRunIDs(ctx)
	if err != nil {
		t.Fatalf("PendingRunIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != first.ID {
		t.Fatalf("pending ids = %v, want oldest first", ids)
	}
}

func TestDiaryEntriesOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "judy")
	m := mustInsertMovie(t, db, &models.Movie{Title: "Seen Twice"})

	older := time.Now().UTC().Add(-48 * time.Hour)
	newer := time.Now().UTC().Add(-1 * time.Hour)
	for _, watched := range []*time.Time{&older, nil, &newer} {
		if _, err := db.AddDiaryEntry(ctx, models.DiaryEntry{
			UserID: u.ID, MovieID: m.ID, WatchedAt: watched,
		}); err != nil {
			t.Fatalf("AddDiaryEntry failed: %v", err)
		}
	}

	entries, err := db.DiaryEntries(ctx, u.ID)
	if err != nil {
		t.Fatalf("DiaryEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].WatchedAt == nil || !entries[0].WatchedAt.Equal(newer.Truncate(time.Microsecond)) {
		t.Errorf("first entry watched_at = %v, want newest watch first", entries[0].WatchedAt)
	}
	if entries[2].WatchedAt != nil {
		t.Errorf("last entry watched_at = %v, want undated entry last", entries[2].WatchedAt)
	}
}
