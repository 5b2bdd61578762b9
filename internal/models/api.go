// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package models

import "time"

// APIResponse is the envelope for every API reply.
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata carries response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is the structured error payload.
//
// Codes in use: VALIDATION_ERROR, NOT_FOUND, DATABASE_ERROR,
// SERVICE_ERROR.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
