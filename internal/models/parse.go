// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

package models

import (
	"strings"

	"github.com/goccy/go-json"
)

// creditObject is the shape TMDB credit arrays use for people entries.
type creditObject struct {
	Name string `json:"name"`
}

// ParseNameList normalizes raw metadata into a canonical name slice.
// Three input shapes are accepted:
//
//   - JSON string array:        ["Drama","Crime"]
//   - JSON array of objects:    [{"name":"Drama"},{"name":"Crime"}]
//   - comma-separated string:   "Drama, Crime"
//
// Names are trimmed; empty entries are dropped. The output is identical
// regardless of the input shape so downstream feature keys always match.
func ParseNameList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "[") {
		var asStrings []string
		if err := json.Unmarshal([]byte(raw), &asStrings); err == nil {
			return cleanNames(asStrings)
		}

		var asObjects []creditObject
		if err := json.Unmarshal([]byte(raw), &asObjects); err == nil {
			names := make([]string, 0, len(asObjects))
			for _, obj := range asObjects {
				names = append(names, obj.Name)
			}
			return cleanNames(names)
		}
		// Malformed JSON arrays fall through to comma splitting.
	}

	return cleanNames(strings.Split(raw, ","))
}

// cleanNames trims whitespace and drops empty entries, preserving order.
func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
