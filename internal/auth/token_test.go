// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package auth

import (
	"testing"
	"time"

	"github.com/tomtom215/somnus/internal/config"
)

func TestNewTokenManager(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.SecurityConfig
		wantErr bool
	}{
		{
			name: "valid secret",
			cfg: &config.SecurityConfig{
				JWTSecret:       "this_is_a_very_long_secret_key_with_32_plus_characters",
				SessionTokenTTL: 24 * time.Hour,
			},
			wantErr: false,
		},
		{
			name: "empty secret generates ephemeral",
			cfg: &config.SecurityConfig{
				JWTSecret:       "",
				SessionTokenTTL: 24 * time.Hour,
			},
			wantErr: false,
		},
		{
			name: "short secret",
			cfg: &config.SecurityConfig{
				JWTSecret:       "too_short",
				SessionTokenTTL: 24 * time.Hour,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewTokenManager(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("NewTokenManager() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("NewTokenManager() unexpected error = %v", err)
				return
			}
			if manager == nil {
				t.Error("NewTokenManager() returned nil manager")
			}
		})
	}
}

func TestIssueAndValidateToken(t *testing.T) {
	cfg := &config.SecurityConfig{
		JWTSecret:       "this_is_a_very_long_secret_key_for_testing_purposes_12345",
		SessionTokenTTL: time.Hour,
	}

	manager, err := NewTokenManager(cfg)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	tests := []struct {
		name      string
		sessionID string
		runID     string
	}{
		{
			name:      "session with run",
			sessionID: "sess-abc",
			runID:     "run-xyz",
		},
		{
			name:      "session without run",
			sessionID: "sess-def",
			runID:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := manager.IssueToken(tt.sessionID, tt.runID)
			if err != nil {
				t.Errorf("IssueToken() error = %v", err)
				return
			}
			if token == "" {
				t.Error("IssueToken() returned empty token")
				return
			}

			claims, err := manager.ValidateToken(token)
			if err != nil {
				t.Errorf("ValidateToken() error = %v", err)
				return
			}
			if claims.SessionID != tt.sessionID {
				t.Errorf("ValidateToken() session = %v, want %v", claims.SessionID, tt.sessionID)
			}
			if claims.RunID != tt.runID {
				t.Errorf("ValidateToken() run = %v, want %v", claims.RunID, tt.runID)
			}
			if claims.Subject != tt.sessionID {
				t.Errorf("ValidateToken() subject = %v, want %v", claims.Subject, tt.sessionID)
			}
		})
	}
}

func TestIssueTokenRequiresSession(t *testing.T) {
	manager, err := NewTokenManager(&config.SecurityConfig{
		JWTSecret:       "this_is_a_very_long_secret_key_for_testing_purposes_12345",
		SessionTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	if _, err := manager.IssueToken("", "run-1"); err == nil {
		t.Error("IssueToken() expected error for empty session ID, got nil")
	}
}

func TestValidateToken_Invalid(t *testing.T) {
	manager, err := NewTokenManager(&config.SecurityConfig{
		JWTSecret:       "this_is_a_very_long_secret_key_for_testing_purposes_12345",
		SessionTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "invalid token format",
			token: "invalid.token.format",
		},
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "malformed token",
			token: "not_a_jwt_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := manager.ValidateToken(tt.token)
			if err == nil {
				t.Error("ValidateToken() expected error for invalid token, got nil")
			}
			if claims != nil {
				t.Error("ValidateToken() expected nil claims for invalid token")
			}
		})
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	manager1, err := NewTokenManager(&config.SecurityConfig{
		JWTSecret:       "first_secret_key_that_is_long_enough_for_testing_12345",
		SessionTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	manager2, err := NewTokenManager(&config.SecurityConfig{
		JWTSecret:       "second_secret_key_that_is_different_from_first_12345",
		SessionTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	token, err := manager1.IssueToken("sess-1", "run-1")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := manager2.ValidateToken(token)
	if err == nil {
		t.Error("ValidateToken() expected error when using wrong secret, got nil")
	}
	if claims != nil {
		t.Error("ValidateToken() expected nil claims when using wrong secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	manager, err := NewTokenManager(&config.SecurityConfig{
		JWTSecret:       "secret_key_for_expiration_test_that_is_long_enough_12345",
		SessionTokenTTL: -1 * time.Hour, // already expired
	})
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	token, err := manager.IssueToken("sess-1", "run-1")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err == nil {
		t.Error("ValidateToken() expected error for expired token, got nil")
	}
	if claims != nil {
		t.Error("ValidateToken() expected nil claims for expired token")
	}
}

func TestEphemeralSecretsDiffer(t *testing.T) {
	cfg := &config.SecurityConfig{SessionTokenTTL: time.Hour}

	manager1, err := NewTokenManager(cfg)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	manager2, err := NewTokenManager(cfg)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	token, err := manager1.IssueToken("sess-1", "run-1")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := manager2.ValidateToken(token); err == nil {
		t.Error("token issued under one ephemeral secret validated under another")
	}
}

func TestClaimsCovers(t *testing.T) {
	tests := []struct {
		name      string
		claims    Claims
		sessionID string
		want      bool
	}{
		{"matching session", Claims{SessionID: "sess-1"}, "sess-1", true},
		{"other session", Claims{SessionID: "sess-1"}, "sess-2", false},
		{"empty target", Claims{SessionID: "sess-1"}, "", false},
		{"empty claims", Claims{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.claims.Covers(tt.sessionID); got != tt.want {
				t.Errorf("Covers(%q) = %v, want %v", tt.sessionID, got, tt.want)
			}
		})
	}
}
