// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package experiment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/somnus/internal/corpus"
	"github.com/tomtom215/somnus/internal/form"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
	"github.com/tomtom215/somnus/internal/models"
)

// Notifier receives session lifecycle events after they are persisted.
// Implementations must not block; slow consumers should hand off internally.
type Notifier interface {
	ChoiceRecorded(session *Session, choice Choice)
	SessionCompleted(session *Session)
}

// Manager coordinates session creation and choice submission.
//
// Submissions for the same session are serialized through a per-session
// lock so that index advancement is atomic: of two concurrent submissions
// for the same pair, exactly one succeeds and the other is rejected as
// stale.
type Manager struct {
	store    Store
	builder  *Builder
	notifier Notifier

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a Manager over the given store and builder.
func NewManager(store Store, builder *Builder) *Manager {
	return &Manager{
		store:   store,
		builder: builder,
		locks:   make(map[string]*sync.Mutex),
	}
}

// SetNotifier installs a lifecycle event consumer. Pass nil to disable.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// CreateParams carries everything needed to build and persist a session.
// RunID and ReferenceDigest tie the session back to the pipeline run that
// produced its recommendation list; both may be empty for sessions built
// outside a run.
type CreateParams struct {
	UserID          string
	Form            form.FormSubmission
	Recommended     []corpus.Track
	RunID           string
	ReferenceDigest string
}

// CreateSession builds a session from a ranked recommendation list and
// persists it.
func (m *Manager) CreateSession(ctx context.Context, params CreateParams) (*Session, error) {
	session, err := m.builder.Build(params.UserID, params.Form, params.Recommended)
	if err != nil {
		return nil, err
	}
	session.RunID = params.RunID
	session.ReferenceDigest = params.ReferenceDigest

	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}

	metrics.RecordSessionCreated()
	logging.Info().
		Str("session_id", session.SessionID).
		Str("user_id", params.UserID).
		Int("pairs", len(session.Pairs)).
		Msg("Experiment session created")

	return session, nil
}

// GetSession retrieves a session by ID.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	return m.store.Get(ctx, sessionID)
}

// SubmitChoice records one comparison choice and returns the updated
// session.
func (m *Manager) SubmitChoice(ctx context.Context, sessionID string, req models.SubmitChoiceRequest) (*Session, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	choice := Choice{
		PairID:         req.PairID,
		ChosenSide:     req.ChosenSide,
		DecisionTimeMS: req.DecisionTimeMS,
		PlayCountA:     req.PlayCountA,
		PlayCountB:     req.PlayCountB,
		ListenMSA:      req.ListenMSA,
		ListenMSB:      req.ListenMSB,
		RecordedAt:     time.Now(),
	}

	if err := session.SubmitChoice(choice); err != nil {
		metrics.RecordChoiceRejection(rejectionReason(err))
		return nil, err
	}

	if err := m.store.Update(ctx, session); err != nil {
		return nil, err
	}

	metrics.RecordChoice(time.Duration(req.DecisionTimeMS) * time.Millisecond)
	if m.notifier != nil {
		m.notifier.ChoiceRecorded(session, choice)
	}

	if session.Status == StatusCompleted {
		metrics.RecordSessionCompleted()
		logging.Info().
			Str("session_id", session.SessionID).
			Int("choices", len(session.Choices)).
			Msg("Experiment session completed")
		if m.notifier != nil {
			m.notifier.SessionCompleted(session)
		}
		// Completed sessions mutate no further, so the lock entry can go.
		m.releaseLock(sessionID)
	}

	return session, nil
}

// Results returns the unblinded record of a completed session. Returns
// ErrSessionNotCompleted while any pair is still unanswered.
func (m *Manager) Results(ctx context.Context, sessionID string) (models.SessionResultsView, error) {
	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return models.SessionResultsView{}, err
	}

	if session.Status != StatusCompleted {
		return models.SessionResultsView{}, ErrSessionNotCompleted
	}

	return session.ResultsView(), nil
}

// ActiveSessions returns the number of stored sessions.
func (m *Manager) ActiveSessions(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

func (m *Manager) sessionLock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	return lock
}

func (m *Manager) releaseLock(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, sessionID)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrStaleSubmission):
		return "stale_submission"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, ErrInvalidChoice):
		return "invalid_choice"
	default:
		return "other"
	}
}
