// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package recommend

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/jmawebb/cinematch/internal/logging"
	"github.com/jmawebb/cinematch/internal/metrics"
	"github.com/jmawebb/cinematch/internal/models"
	"github.com/jmawebb/cinematch/internal/tmdb"
)

// Strategy names, used in logs and metric labels.
const (
	StrategySimilar  = "similar_to_rated"
	StrategyDirector = "director_discovery"
	StrategyCast     = "cast_discovery"
	StrategyGenre    = "genre_discovery"
	StrategyTrending = "trending"
)

// Store is the slice of persistence the candidate generator needs.
// *database.DB satisfies it; tests use in-memory fakes.
type Store interface {
	// PopularMovies returns catalog movies at or above the popularity
	// floor. A non-empty genres slice restricts results to movies
	// matching any of the genres.
	PopularMovies(ctx context.Context, minPopularity float64, genres []string, limit int) ([]*models.Movie, error)

	// TopRatedMovies returns the user's highest-rated movies,
	// descending by rating.
	TopRatedMovies(ctx context.Context, userID int64, limit int) ([]*models.Movie, error)

	// MovieByExternalID returns the movie linked to a TMDB id, or
	// (nil, nil) when none exists.
	MovieByExternalID(ctx context.Context, externalID int64) (*models.Movie, error)

	// InsertMovie stores a new movie and returns it with its id set.
	InsertMovie(ctx context.Context, m *models.Movie) (*models.Movie, error)

	// UpdateMovie persists changes to an existing movie.
	UpdateMovie(ctx context.Context, m *models.Movie) error

	// ExclusionSets returns the internal and external ids of every
	// movie the user has rated, logged, or watchlisted.
	ExclusionSets(ctx context.Context, userID int64) (internal map[int64]struct{}, external map[int64]struct{}, err error)
}

// StrategyResult is the typed outcome of one discovery strategy.
// Movies holds whatever the strategy collected before Err (if any)
// stopped it; a failed strategy never aborts the pool.
type StrategyResult struct {
	Name   string
	Movies []tmdb.Movie
	Err    error
}

// GeneratorConfig tunes the candidate pool.
type GeneratorConfig struct {
	// MinPopularity is the floor for the local popular pool and for
	// external genre discovery.
	MinPopularity float64 `json:"min_popularity" koanf:"min_popularity"`

	// LocalPoolSize caps the local popular pool.
	LocalPoolSize int `json:"local_pool_size" koanf:"local_pool_size"`

	// SeedCount is how many top-rated movies seed the similarity
	// strategy.
	SeedCount int `json:"seed_count" koanf:"seed_count"`

	// TopFeatureCount is how many top genre/director/cast features
	// drive the discovery strategies.
	TopFeatureCount int `json:"top_feature_count" koanf:"top_feature_count"`
}

// DefaultGeneratorConfig returns the production pool configuration.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MinPopularity:   10.0,
		LocalPoolSize:   200,
		SeedCount:       10,
		TopFeatureCount: 3,
	}
}

// Validate checks the generator configuration.
func (c GeneratorConfig) Validate() error {
	if c.MinPopularity < 0 {
		return fmt.Errorf("min popularity must be >= 0, got %f", c.MinPopularity)
	}
	if c.LocalPoolSize < 1 {
		return fmt.Errorf("local pool size must be >= 1, got %d", c.LocalPoolSize)
	}
	if c.SeedCount < 1 {
		return fmt.Errorf("seed count must be >= 1, got %d", c.SeedCount)
	}
	if c.TopFeatureCount < 1 {
		return fmt.Errorf("top feature count must be >= 1, got %d", c.TopFeatureCount)
	}
	return nil
}

// MovieInvalidator drops a movie's cached feature vector so the next
// read rebuilds it from current metadata.
type MovieInvalidator interface {
	InvalidateMovie(movieID int64) error
}

// Generator assembles the deduplicated candidate pool for a user from
// the local catalog and, when an external source is available, five
// independent discovery strategies.
type Generator struct {
	store       Store
	source      tmdb.Source // nil = local-only
	cfg         GeneratorConfig
	validate    *validator.Validate
	logger      zerolog.Logger
	invalidator MovieInvalidator // optional

	// rng drives the final shuffle; injected for deterministic tests.
	rng   *rand.Rand
	rngMu sync.Mutex

	// genre catalog cache, name(lower) -> TMDB id
	genreMu  sync.Mutex
	genreIDs map[string]int64
}

// NewGenerator builds a candidate generator. source may be nil, in
// which case only the local pool is used. rng may be nil, in which
// case a time-seeded source is created.
func NewGenerator(store Store, source tmdb.Source, cfg GeneratorConfig, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // shuffle order is not security sensitive
	}
	return &Generator{
		store:    store,
		source:   source,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logging.WithComponent("candidates"),
		rng:      rng,
	}
}

// SetMovieInvalidator registers the embedding cache invalidation hook
// called after a fill-blanks update changes a movie's metadata.
func (g *Generator) SetMovieInvalidator(inv MovieInvalidator) {
	g.invalidator = inv
}

// Generate returns up to limit unseen candidate movies for the user,
// shuffled. External strategy failures are logged and skipped; only
// local store failures abort generation.
func (g *Generator) Generate(ctx context.Context, userID int64, userVec Vector, limit int) ([]*models.Movie, error) {
	if limit < 1 {
		return nil, fmt.Errorf("candidate limit must be >= 1, got %d", limit)
	}

	internalExcl, externalExcl, err := g.store.ExclusionSets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exclusions for user %d: %w", userID, err)
	}

	pool, err := g.localPool(ctx, userVec)
	if err != nil {
		return nil, fmt.Errorf("failed to load local candidate pool: %w", err)
	}

	if g.source != nil {
		external := g.externalPool(ctx, userID, userVec, externalExcl)
		pool = append(pool, external...)
	}

	pool = g.filterAndDedupe(pool, internalExcl, externalExcl)

	g.rngMu.Lock()
	g.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	g.rngMu.Unlock()

	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}

// localPool queries the catalog for popular movies, biased toward the
// user's top genres when the profile has any.
func (g *Generator) localPool(ctx context.Context, userVec Vector) ([]*models.Movie, error) {
	genres := TopFeatures(userVec, FeatureGenre, g.cfg.TopFeatureCount)
	return g.store.PopularMovies(ctx, g.cfg.MinPopularity, genres, g.cfg.LocalPoolSize)
}

// externalPool runs every discovery strategy, records the outcomes,
// and upserts the survivors into the catalog. Failures degrade, never
// abort.
func (g *Generator) externalPool(ctx context.Context, userID int64, userVec Vector, externalExcl map[int64]struct{}) []*models.Movie {
	results := []StrategyResult{
		g.similarToRated(ctx, userID),
		g.personDiscovery(ctx, StrategyDirector, userVec, FeatureDirector, tmdb.RoleDirector),
		g.personDiscovery(ctx, StrategyCast, userVec, FeatureCast, tmdb.RoleCast),
		g.genreDiscovery(ctx, userVec),
		g.trending(ctx),
	}

	seen := make(map[int64]struct{})
	var pool []*models.Movie

	for _, res := range results {
		metrics.RecordStrategy(res.Name, len(res.Movies), res.Err)
		if res.Err != nil {
			g.logger.Warn().Err(res.Err).Str("strategy", res.Name).
				Int("partial_candidates", len(res.Movies)).
				Msg("candidate strategy failed")
		}

		for _, em := range res.Movies {
			if em.ID == 0 {
				continue
			}
			if _, dup := seen[em.ID]; dup {
				continue
			}
			seen[em.ID] = struct{}{}
			if _, excluded := externalExcl[em.ID]; excluded {
				continue
			}

			movie, err := g.upsertExternal(ctx, em)
			if err != nil {
				g.logger.Warn().Err(err).Int64("external_id", em.ID).Str("title", em.Title).
					Msg("dropping external candidate")
				continue
			}
			pool = append(pool, movie)
		}
	}
	return pool
}

// similarToRated seeds TMDB's similar and recommendation lists with
// the user's highest-rated linked movies.
func (g *Generator) similarToRated(ctx context.Context, userID int64) StrategyResult {
	res := StrategyResult{Name: StrategySimilar}

	seeds, err := g.store.TopRatedMovies(ctx, userID, g.cfg.SeedCount)
	if err != nil {
		res.Err = fmt.Errorf("failed to load seed movies: %w", err)
		return res
	}

	for _, seed := range seeds {
		if seed.ExternalID == 0 {
			continue
		}
		similar, err := g.source.SimilarMovies(ctx, seed.ExternalID)
		if err != nil {
			res.Err = fmt.Errorf("similar movies for %d: %w", seed.ExternalID, err)
			return res
		}
		res.Movies = append(res.Movies, similar...)

		recs, err := g.source.Recommendations(ctx, seed.ExternalID)
		if err != nil {
			res.Err = fmt.Errorf("recommendations for %d: %w", seed.ExternalID, err)
			return res
		}
		res.Movies = append(res.Movies, recs...)
	}
	return res
}

// personDiscovery resolves the user's top director or cast features to
// TMDB people and discovers their best-regarded movies.
func (g *Generator) personDiscovery(ctx context.Context, name string, userVec Vector, ftype string, role tmdb.PersonRole) StrategyResult {
	res := StrategyResult{Name: name}

	department := "Directing"
	if role == tmdb.RoleCast {
		department = "Acting"
	}

	for _, personName := range TopFeatures(userVec, ftype, g.cfg.TopFeatureCount) {
		people, err := g.source.SearchPerson(ctx, personName)
		if err != nil {
			res.Err = fmt.Errorf("person search %q: %w", personName, err)
			return res
		}

		person := pickPerson(people, department)
		if person == nil {
			continue
		}

		movies, err := g.source.DiscoverByPerson(ctx, person.ID, role)
		if err != nil {
			res.Err = fmt.Errorf("discover by person %d: %w", person.ID, err)
			return res
		}
		res.Movies = append(res.Movies, movies...)
	}
	return res
}

// pickPerson chooses the first search hit in the wanted department,
// falling back to the overall first hit. Search results arrive
// popularity-ordered, so first is best.
func pickPerson(people []tmdb.Person, department string) *tmdb.Person {
	for i := range people {
		if people[i].KnownForDepartment == department {
			return &people[i]
		}
	}
	if len(people) > 0 {
		return &people[0]
	}
	return nil
}

// genreDiscovery maps the user's top genre features to TMDB genre ids
// and discovers top-rated movies in them, filtered by the popularity
// floor.
func (g *Generator) genreDiscovery(ctx context.Context, userVec Vector) StrategyResult {
	res := StrategyResult{Name: StrategyGenre}

	genres := TopFeatures(userVec, FeatureGenre, g.cfg.TopFeatureCount)
	if len(genres) == 0 {
		return res
	}

	catalog, err := g.genreCatalog(ctx)
	if err != nil {
		res.Err = fmt.Errorf("genre catalog: %w", err)
		return res
	}

	var ids []int64
	for _, name := range genres {
		if id, ok := catalog[strings.ToLower(name)]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return res
	}

	movies, err := g.source.DiscoverByGenres(ctx, ids)
	if err != nil {
		res.Err = fmt.Errorf("discover by genres: %w", err)
		return res
	}
	for _, m := range movies {
		if m.Popularity >= g.cfg.MinPopularity {
			res.Movies = append(res.Movies, m)
		}
	}
	return res
}

// trending is the always-on fallback so new users with thin profiles
// still get a pool.
func (g *Generator) trending(ctx context.Context) StrategyResult {
	res := StrategyResult{Name: StrategyTrending}
	movies, err := g.source.TrendingWeek(ctx)
	if err != nil {
		res.Err = fmt.Errorf("trending: %w", err)
		return res
	}
	res.Movies = movies
	return res
}

// genreCatalog lazily fetches and caches the TMDB genre id mapping.
func (g *Generator) genreCatalog(ctx context.Context) (map[string]int64, error) {
	g.genreMu.Lock()
	defer g.genreMu.Unlock()
	if g.genreIDs != nil {
		return g.genreIDs, nil
	}

	genres, err := g.source.Genres(ctx)
	if err != nil {
		return nil, err
	}
	catalog := make(map[string]int64, len(genres))
	for _, genre := range genres {
		catalog[strings.ToLower(genre.Name)] = genre.ID
	}
	g.genreIDs = catalog
	return catalog, nil
}

// upsertExternal finds or creates the local movie for an external
// candidate. New movies fetch the detail record once for credits;
// existing movies only have blank fields filled, never overwritten.
func (g *Generator) upsertExternal(ctx context.Context, em tmdb.Movie) (*models.Movie, error) {
	existing, err := g.store.MovieByExternalID(ctx, em.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup by external id %d: %w", em.ID, err)
	}

	if existing == nil {
		movie, err := g.movieFromExternal(ctx, em)
		if err != nil {
			return nil, err
		}
		if err := g.validate.Struct(movie); err != nil {
			return nil, fmt.Errorf("invalid external movie %d: %w", em.ID, err)
		}
		inserted, err := g.store.InsertMovie(ctx, movie)
		if err != nil {
			return nil, fmt.Errorf("insert movie %d: %w", em.ID, err)
		}
		return inserted, nil
	}

	if fillBlanks(existing, em) {
		if err := g.validate.Struct(existing); err != nil {
			return nil, fmt.Errorf("invalid movie %d after fill: %w", existing.ID, err)
		}
		if err := g.store.UpdateMovie(ctx, existing); err != nil {
			return nil, fmt.Errorf("update movie %d: %w", existing.ID, err)
		}
		// Metadata changed, the cached vector is stale.
		if g.invalidator != nil {
			if err := g.invalidator.InvalidateMovie(existing.ID); err != nil {
				g.logger.Warn().Err(err).Int64("movie_id", existing.ID).Msg("Failed to invalidate movie vector")
			}
		}
	}
	return existing, nil
}

// movieFromExternal builds a full local record from the detail
// endpoint, falling back to the list entry when the detail call fails
// with not-found.
func (g *Generator) movieFromExternal(ctx context.Context, em tmdb.Movie) (*models.Movie, error) {
	movie := &models.Movie{
		ExternalID:  em.ID,
		Title:       em.Title,
		Overview:    em.Overview,
		PosterPath:  em.PosterPath,
		Popularity:  em.Popularity,
		VoteAverage: em.VoteAverage,
		VoteCount:   em.VoteCount,
	}
	if ts := parseReleaseDate(em.ReleaseDate); ts != nil {
		movie.ReleaseDate = ts
	}

	detail, err := g.source.MovieDetail(ctx, em.ID)
	if err != nil {
		if tmdb.IsNotFound(err) {
			return movie, nil
		}
		return nil, fmt.Errorf("detail for %d: %w", em.ID, err)
	}

	movie.Genres = detail.GenreNames()
	movie.Directors = detail.Directors()
	movie.Cast = detail.TopCast(10)
	movie.Runtime = detail.Runtime
	if movie.Overview == "" {
		movie.Overview = detail.Overview
	}
	if movie.PosterPath == "" {
		movie.PosterPath = detail.PosterPath
	}
	if movie.ReleaseDate == nil {
		movie.ReleaseDate = parseReleaseDate(detail.ReleaseDate)
	}
	return movie, nil
}

// fillBlanks copies list-entry fields onto blank fields of an existing
// record. Returns true when anything changed.
func fillBlanks(m *models.Movie, em tmdb.Movie) bool {
	changed := false
	if m.Title == "" && em.Title != "" {
		m.Title = em.Title
		changed = true
	}
	if m.Overview == "" && em.Overview != "" {
		m.Overview = em.Overview
		changed = true
	}
	if m.PosterPath == "" && em.PosterPath != "" {
		m.PosterPath = em.PosterPath
		changed = true
	}
	if m.ReleaseDate == nil {
		if ts := parseReleaseDate(em.ReleaseDate); ts != nil {
			m.ReleaseDate = ts
			changed = true
		}
	}
	if m.Popularity == 0 && em.Popularity != 0 {
		m.Popularity = em.Popularity
		changed = true
	}
	if m.VoteAverage == 0 && em.VoteAverage != 0 {
		m.VoteAverage = em.VoteAverage
		changed = true
	}
	if m.VoteCount == 0 && em.VoteCount != 0 {
		m.VoteCount = em.VoteCount
		changed = true
	}
	return changed
}

// parseReleaseDate parses TMDB's YYYY-MM-DD date, nil when empty or
// malformed.
func parseReleaseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	ts = ts.UTC()
	return &ts
}

// filterAndDedupe removes excluded and duplicate movies. Identity is
// the external id when linked, the internal id otherwise.
func (g *Generator) filterAndDedupe(pool []*models.Movie, internalExcl, externalExcl map[int64]struct{}) []*models.Movie {
	seenExternal := make(map[int64]struct{})
	seenInternal := make(map[int64]struct{})

	out := pool[:0]
	for _, m := range pool {
		if _, excluded := internalExcl[m.ID]; excluded {
			continue
		}
		if m.ExternalID != 0 {
			if _, excluded := externalExcl[m.ExternalID]; excluded {
				continue
			}
			if _, dup := seenExternal[m.ExternalID]; dup {
				continue
			}
			seenExternal[m.ExternalID] = struct{}{}
		}
		if m.ID != 0 {
			if _, dup := seenInternal[m.ID]; dup {
				continue
			}
			seenInternal[m.ID] = struct{}{}
		}
		out = append(out, m)
	}
	return out
}
