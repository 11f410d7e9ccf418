// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/metrics"
)

const sessionKeyPrefix = "experiment:session:"

// BadgerStore is a BadgerDB-backed session store. Sessions survive restarts,
// which matters for multi-day listening experiments.
type BadgerStore struct {
	db     *badger.DB
	ownsDB bool
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens a BadgerDB at path and returns a store that owns it.
// Close closes the database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for sessions: %w", err)
	}

	return &BadgerStore{db: db, ownsDB: true}, nil
}

// NewBadgerStoreFromDB wraps an existing BadgerDB connection. Close does not
// close the database.
func NewBadgerStoreFromDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Create stores a new session.
func (s *BadgerStore) Create(_ context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		metrics.RecordSessionStoreOperation("put", err)
		return fmt.Errorf("marshal session: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := []byte(sessionKeyPrefix + session.SessionID)
		return txn.Set(key, data)
	})
	metrics.RecordSessionStoreOperation("put", err)
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (s *BadgerStore) Get(_ context.Context, id string) (*Session, error) {
	var session Session

	err := s.db.View(func(txn *badger.Txn) error {
		key := []byte(sessionKeyPrefix + id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})

	if err == nil && session.IsExpired() {
		err = ErrSessionNotFound
	}
	metrics.RecordSessionStoreOperation("get", err)
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// Update replaces an existing session.
func (s *BadgerStore) Update(ctx context.Context, session *Session) error {
	if _, err := s.Get(ctx, session.SessionID); err != nil {
		return err
	}

	data, err := json.Marshal(session)
	if err != nil {
		metrics.RecordSessionStoreOperation("put", err)
		return fmt.Errorf("marshal session: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := []byte(sessionKeyPrefix + session.SessionID)
		return txn.Set(key, data)
	})
	metrics.RecordSessionStoreOperation("put", err)
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Delete removes a session by ID.
func (s *BadgerStore) Delete(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(sessionKeyPrefix + id)
		if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
	metrics.RecordSessionStoreOperation("delete", err)
	return err
}

// CleanupExpired removes all expired sessions.
func (s *BadgerStore) CleanupExpired(ctx context.Context) (int, error) {
	var expiredIDs []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var session Session
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			})
			if err != nil {
				continue
			}

			if session.IsExpired() {
				expiredIDs = append(expiredIDs, session.SessionID)
			}
		}
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("scan sessions: %w", err)
	}

	count := 0
	for _, id := range expiredIDs {
		if err := s.Delete(ctx, id); err != nil {
			continue
		}
		count++
	}

	return count, nil
}

// Count returns the number of stored sessions.
func (s *BadgerStore) Count(_ context.Context) (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// Close closes the underlying database if this store opened it.
func (s *BadgerStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// NewStore creates a session store from experiment configuration: "badger"
// opens a persistent store at SessionStorePath, anything else (including
// "memory" and empty) is in-memory.
func NewStore(cfg config.ExperimentConfig) (Store, error) {
	if cfg.SessionStore == "badger" {
		return NewBadgerStore(cfg.SessionStorePath)
	}
	return NewMemoryStore(), nil
}
