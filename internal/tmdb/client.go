// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

// Package tmdb provides the rate-limited client for The Movie Database
// REST API, the engine's external metadata source.
//
// Resilience mechanisms:
//   - Rate gate: one shared rate.Limiter serializes every outbound call
//     process-wide at a fixed interval, staying under TMDB's limits by
//     construction rather than by reacting to 429s
//   - Typed errors: authentication, not-found, rate-limit and server
//     failures are distinct types callers can branch on
//   - Circuit breaker: NewBreakerSource wraps any Source with a
//     gobreaker state machine
//
// A missing API key fails client construction with AuthenticationError;
// callers then run with a nil Source and skip external strategies.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jmawebb/cinematch/internal/logging"
	"github.com/jmawebb/cinematch/internal/metrics"
)

// maxErrorBodySize limits how much of an error response body is read
// for diagnostics.
const maxErrorBodySize = 64 * 1024

// PersonRole selects which credit axis a person discovery query uses.
type PersonRole string

const (
	RoleDirector PersonRole = "crew"
	RoleCast     PersonRole = "cast"
)

// Source is the consumer-facing interface over the TMDB API. The
// candidate generator depends on this, not on the concrete client, so
// tests inject fakes and production optionally layers a circuit
// breaker on top.
type Source interface {
	MovieDetail(ctx context.Context, externalID int64) (*MovieDetail, error)
	SimilarMovies(ctx context.Context, externalID int64) ([]Movie, error)
	Recommendations(ctx context.Context, externalID int64) ([]Movie, error)
	SearchMovie(ctx context.Context, query string, year int) ([]Movie, error)
	SearchPerson(ctx context.Context, name string) ([]Person, error)
	DiscoverByPerson(ctx context.Context, personID int64, role PersonRole) ([]Movie, error)
	DiscoverByGenres(ctx context.Context, genreIDs []int64) ([]Movie, error)
	Genres(ctx context.Context) ([]Genre, error)
	TrendingWeek(ctx context.Context) ([]Movie, error)
}

// Config holds client construction parameters.
type Config struct {
	// APIKey is the TMDB v3 API key. Required.
	APIKey string `json:"api_key" koanf:"api_key"`

	// BaseURL overrides the API root, mainly for tests.
	// Default: https://api.themoviedb.org/3
	BaseURL string `json:"base_url" koanf:"base_url"`

	// RequestInterval is the fixed spacing between outbound calls.
	// Default: 250ms (well under TMDB's ~50 req/s ceiling).
	RequestInterval time.Duration `json:"request_interval" koanf:"request_interval"`

	// Timeout bounds each HTTP request. Default: 10s.
	Timeout time.Duration `json:"timeout" koanf:"timeout"`
}

// DefaultConfig returns the production client configuration without
// credentials.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://api.themoviedb.org/3",
		RequestInterval: 250 * time.Millisecond,
		Timeout:         10 * time.Second,
	}
}

// Client is the concrete TMDB API client. Safe for concurrent use;
// the embedded limiter serializes outbound requests.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient builds a client from cfg. Returns AuthenticationError when
// no API key is configured so the caller can degrade to local-only
// candidate generation instead of failing every request later.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &AuthenticationError{Reason: "no API key configured"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.RequestInterval <= 0 {
		cfg.RequestInterval = DefaultConfig().RequestInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.RequestInterval), 1),
		logger:  logging.WithComponent("tmdb"),
	}, nil
}

// get performs one rate-gated GET and decodes the JSON body into
// result. endpoint is the metric label, path the URL path.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, result interface{}) error {
	gateStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate gate wait aborted: %w", err)
	}
	metrics.ExternalRateGateWait.Observe(time.Since(gateStart).Seconds())

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.ExternalRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExternalRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if typedErr := c.statusError(resp, path); typedErr != nil {
		metrics.ExternalRequests.WithLabelValues(endpoint, statusLabel(typedErr)).Inc()
		c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Msg("request rejected")
		return typedErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		metrics.ExternalRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	metrics.ExternalRequests.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

// statusError maps a non-2xx response to its typed error, nil for 2xx.
func (c *Client) statusError(resp *http.Response, path string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthenticationError{Reason: "API key rejected"}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Path: path}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: resp.Header.Get("Retry-After")}
	case resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode, Body: string(readBodyForError(resp.Body))}
	default:
		return &APIError{StatusCode: resp.StatusCode, Path: path, Body: string(readBodyForError(resp.Body))}
	}
}

// statusLabel maps a typed error to its metric label.
func statusLabel(err error) string {
	var (
		ae *AuthenticationError
		nf *NotFoundError
		rl *RateLimitError
		se *ServerError
	)
	switch {
	case errors.As(err, &ae):
		return "auth"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &rl):
		return "rate_limited"
	case errors.As(err, &se):
		return "server"
	default:
		return "error"
	}
}

// readBodyForError reads at most maxErrorBodySize bytes for error
// reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

// MovieDetail fetches a movie with credits appended, one round trip.
func (c *Client) MovieDetail(ctx context.Context, externalID int64) (*MovieDetail, error) {
	params := url.Values{}
	params.Set("append_to_response", "credits")
	var detail MovieDetail
	if err := c.get(ctx, "movie_detail", fmt.Sprintf("/movie/%d", externalID), params, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// SimilarMovies fetches TMDB's similar-movie list for a movie.
func (c *Client) SimilarMovies(ctx context.Context, externalID int64) ([]Movie, error) {
	var list MovieList
	if err := c.get(ctx, "similar", fmt.Sprintf("/movie/%d/similar", externalID), nil, &list); err != nil {
		return nil, err
	}
	return list.Results, nil
}

// Recommendations fetches TMDB's recommendation list for a movie.
func (c *Client) Recommendations(ctx context.Context, externalID int64) ([]Movie, error) {
	var list MovieList
	if err := c.get(ctx, "recommendations", fmt.Sprintf("/movie/%d/recommendations", externalID), nil, &list); err != nil {
		return nil, err
	}
	return list.Results, nil
}

// SearchMovie searches movies by title, optionally constrained to a
// release year (0 = any).
func (c *Client) SearchMovie(ctx context.Context, query string, year int) ([]Movie, error) {
	params := url.Values{}
	params.Set("query", query)
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}
	var list MovieList
	if err := c.get(ctx, "search_movie", "/search/movie", params, &list); err != nil {
		return nil, err
	}
	return list.Results, nil
}

// SearchPerson searches people by name.
func (c *Client) SearchPerson(ctx context.Context, name string) ([]Person, error) {
	params := url.Values{}
	params.Set("query", name)
	var list PersonList
	if err := c.get(ctx, "search_person", "/search/person", params, &list); err != nil {
		return nil, err
	}
	return list.Results, nil
}

// DiscoverByPerson finds well-regarded movies a person worked on,
// either behind the camera (RoleDirector) or in front (RoleCast).
func (c *Client) DiscoverByPerson(ctx context.Context, personID int64, role PersonRole) ([]Movie, error) {
	params := url.Values{}
	params.Set("sort_by", "vote_average.desc")
	params.Set("vote_count.gte", "100")
	switch role {
	case RoleCast:
		params.Set("with_cast", strconv.FormatInt(personID, 10))
	default:
		params.Set("with_crew", strconv.FormatInt(personID, 10))
	}
	var list MovieList
	if err := c.get(ctx, "discover_person", "/discover/movie", params, &list); err != nil {
		return nil, err
	}
	return list.Results, nil
}

// DiscoverByGenres finds top-rated movies matching any of the genre
// ids, filtered to titles with enough votes to make the average mean
// something.
func (c *Client) DiscoverByGenres(ctx context.Context, genreIDs []int64) ([]Movie, error) {
	ids := make([]string, 0, len(genreIDs))
	for _, id := range genreIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	params := url.Values{}
	params.Set("with_genres", strings.Join(ids, "|"))
	params.Set("sort_by", "vote_average.desc")
	params.Set("vote_count.gte", "300")
	var list MovieList
	if err := c.get(ctx, "discover_genre", "/discover/movie", params, &list); err != nil {
		return nil, err
	}
	return list.Results, nil
}

// Genres fetches the movie genre catalog.
func (c *Client) Genres(ctx context.Context) ([]Genre, error) {
	var list GenreList
	if err := c.get(ctx, "genre_list", "/genre/movie/list", nil, &list); err != nil {
		return nil, err
	}
	return list.Genres, nil
}

// TrendingWeek fetches this week's trending movies.
func (c *Client) TrendingWeek(ctx context.Context) ([]Movie, error) {
	var list MovieList
	if err := c.get(ctx, "trending", "/trending/movie/week", nil, &list); err != nil {
		return nil, err
	}
	return list.Results, nil
}
