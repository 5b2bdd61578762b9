// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package tmdb

import (
	"errors"
	"fmt"
)

// AuthenticationError reports a missing or rejected API key. Callers
// treat it as "external source unavailable" and degrade to local-only
// candidate generation.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("tmdb authentication failed: %s", e.Reason)
}

// NotFoundError reports a 404 for a specific resource.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tmdb resource not found: %s", e.Path)
}

// RateLimitError reports a 429 from the API despite the local gate.
type RateLimitError struct {
	RetryAfter string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("tmdb rate limited, retry after %s", e.RetryAfter)
	}
	return "tmdb rate limited"
}

// ServerError reports a 5xx response.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("tmdb server error (HTTP %d): %s", e.StatusCode, e.Body)
}

// APIError is the catch-all for unexpected response statuses.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tmdb request %s failed (HTTP %d): %s", e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAuthentication reports whether err wraps an AuthenticationError.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}
