// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

// Package embedcache persists computed feature vectors in BadgerDB so
// profile and catalog embeddings survive restarts and are not rebuilt
// on every run.
package embedcache

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/jmawebb/cinematch/internal/logging"
	"github.com/jmawebb/cinematch/internal/metrics"
	"github.com/jmawebb/cinematch/internal/recommend"
)

// Key prefixes for BadgerDB storage
const (
	movieKeyPrefix = "movie:"
	userKeyPrefix  = "user:"
)

// userVectorTTL bounds staleness of cached profiles. Profiles are
// invalidated explicitly on history changes; the TTL only covers
// writes that bypass the event path.
const userVectorTTL = 24 * time.Hour

// Cache is a BadgerDB-backed vector store keyed by movie or user id.
type Cache struct {
	db *badger.DB
}

// Open creates (or reopens) the cache at dir. An empty dir opens an
// in-memory cache, used in tests.
func Open(dir string) (*Cache, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// 0750 per gosec G301
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}

	logger := logging.WithComponent("embedcache")
	logger.Debug().Str("dir", dir).Msg("Embedding cache opened")
	return &Cache{db: db}, nil
}

// Close flushes and closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// MovieVector returns the cached vector for a movie id. The second
// return is false on a miss.
func (c *Cache) MovieVector(movieID int64) (recommend.Vector, bool, error) {
	return c.get(movieKey(movieID), "movie")
}

// SetMovieVector stores a movie vector. Movie vectors have no TTL;
// they are invalidated when the movie row changes.
func (c *Cache) SetMovieVector(movieID int64, vec recommend.Vector) error {
	return c.set(movieKey(movieID), vec, 0)
}

// InvalidateMovie drops the cached vector for a movie.
func (c *Cache) InvalidateMovie(movieID int64) error {
	return c.delete(movieKey(movieID))
}

// UserVector returns the cached profile vector for a user. The second
// return is false on a miss.
func (c *Cache) UserVector(userID int64) (recommend.Vector, bool, error) {
	return c.get(userKey(userID), "user")
}

// SetUserVector stores a profile vector with the staleness TTL.
func (c *Cache) SetUserVector(userID int64, vec recommend.Vector) error {
	return c.set(userKey(userID), vec, userVectorTTL)
}

// InvalidateUser drops the cached profile for a user. Called when the
// user's history changes.
func (c *Cache) InvalidateUser(userID int64) error {
	return c.delete(userKey(userID))
}

func (c *Cache) get(key []byte, kind string) (recommend.Vector, bool, error) {
	var vec recommend.Vector

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &vec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.EmbeddingCacheMisses.WithLabelValues(kind).Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached %s vector: %w", kind, err)
	}

	metrics.EmbeddingCacheHits.WithLabelValues(kind).Inc()
	return vec, true, nil
}

func (c *Cache) set(key []byte, vec recommend.Vector, ttl time.Duration) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (c *Cache) delete(key []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete cached vector: %w", err)
	}
	return nil
}

func movieKey(id int64) []byte {
	return []byte(movieKeyPrefix + strconv.FormatInt(id, 10))
}

func userKey(id int64) []byte {
	return []byte(userKeyPrefix + strconv.FormatInt(id, 10))
}
