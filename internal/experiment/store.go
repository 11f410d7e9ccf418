// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package experiment

import (
	"context"
	"sync"

	"github.com/tomtom215/somnus/internal/metrics"
)

// Store persists experiment sessions.
//
// Expired sessions are indistinguishable from missing ones: Get returns
// ErrSessionNotFound for both, and CleanupExpired reclaims the storage.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID. Returns ErrSessionNotFound when the
	// session does not exist or has expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Update replaces an existing session. Returns ErrSessionNotFound when
	// the session does not exist or has expired.
	Update(ctx context.Context, session *Session) error

	// Delete removes a session by ID. Deleting a missing session is not an
	// error.
	Delete(ctx context.Context, id string) error

	// CleanupExpired removes all expired sessions and returns how many were
	// removed.
	CleanupExpired(ctx context.Context) (int, error)

	// Count returns the number of stored sessions, expired ones included.
	Count(ctx context.Context) (int, error)

	// Close releases any underlying storage.
	Close() error
}

// MemoryStore is an in-memory session store. Suitable for single-instance
// deployments and tests; sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Create stores a new session. The store keeps its own copy.
func (m *MemoryStore) Create(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.SessionID] = session.Clone()
	metrics.RecordSessionStoreOperation("put", nil)
	return nil
}

// Get retrieves a copy of a session by ID.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || session.IsExpired() {
		metrics.RecordSessionStoreOperation("get", ErrSessionNotFound)
		return nil, ErrSessionNotFound
	}

	metrics.RecordSessionStoreOperation("get", nil)
	return session.Clone(), nil
}

// Update replaces an existing session.
func (m *MemoryStore) Update(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.sessions[session.SessionID]
	if !ok || existing.IsExpired() {
		metrics.RecordSessionStoreOperation("put", ErrSessionNotFound)
		return ErrSessionNotFound
	}

	m.sessions[session.SessionID] = session.Clone()
	metrics.RecordSessionStoreOperation("put", nil)
	return nil
}

// Delete removes a session by ID.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	metrics.RecordSessionStoreOperation("delete", nil)
	return nil
}

// CleanupExpired removes all expired sessions.
func (m *MemoryStore) CleanupExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, session := range m.sessions {
		if session.IsExpired() {
			delete(m.sessions, id)
			count++
		}
	}
	return count, nil
}

// Count returns the number of stored sessions.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions), nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
