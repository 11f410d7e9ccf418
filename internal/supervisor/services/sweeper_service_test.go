// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// fakeSweepStore counts CleanupExpired calls and can fail the first few.
type fakeSweepStore struct {
	calls   atomic.Int32
	failing int32
	removed int
}

func (f *fakeSweepStore) CleanupExpired(_ context.Context) (int, error) {
	if n := f.calls.Add(1); n <= f.failing {
		return 0, errors.New("store unavailable")
	}
	return f.removed, nil
}

func TestSessionSweeper_Interface(t *testing.T) {
	var _ suture.Service = (*SessionSweeper)(nil)
}

func TestNewSessionSweeper(t *testing.T) {
	store := &fakeSweepStore{}

	if s := NewSessionSweeper(store, time.Minute); s.interval != time.Minute {
		t.Errorf("expected interval 1m, got %v", s.interval)
	}
	if s := NewSessionSweeper(store, 0); s.interval != defaultSweepInterval {
		t.Errorf("expected default interval, got %v", s.interval)
	}
	if s := NewSessionSweeper(store, -time.Second); s.interval != defaultSweepInterval {
		t.Errorf("expected default interval, got %v", s.interval)
	}
	if got := NewSessionSweeper(store, 0).String(); got != "session-sweeper" {
		t.Errorf("expected name 'session-sweeper', got %q", got)
	}
}

func TestSessionSweeper_Serve(t *testing.T) {
	t.Run("sweeps on every tick until cancelled", func(t *testing.T) {
		store := &fakeSweepStore{removed: 3}
		sweeper := NewSessionSweeper(store, 10*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() {
			errCh <- sweeper.Serve(ctx)
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Error("Serve did not return after cancellation")
		}

		if got := store.calls.Load(); got < 2 {
			t.Errorf("expected at least 2 sweeps, got %d", got)
		}
	})

	t.Run("survives a failing sweep", func(t *testing.T) {
		store := &fakeSweepStore{failing: 1}
		sweeper := NewSessionSweeper(store, 10*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			errCh <- sweeper.Serve(ctx)
		}()

		// The first sweep fails; later ticks must keep sweeping.
		deadline := time.After(time.Second)
		for store.calls.Load() < 3 {
			select {
			case err := <-errCh:
				t.Fatalf("Serve exited after a failed sweep: %v", err)
			case <-deadline:
				t.Fatal("sweeper stopped ticking after a failure")
			case <-time.After(5 * time.Millisecond):
			}
		}
	})
}
