// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/logging"
)

// secretMinLength is the minimum accepted HMAC secret length. Config
// validation enforces the same bound; this is the last line for callers
// constructing the manager directly.
const secretMinLength = 32

// Claims are the session token claims. A token is issued when a pipeline
// run creates an experiment session and authorizes requests against that
// session only; participants are anonymous, so the session is the subject.
type Claims struct {
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
	jwt.RegisteredClaims
}

// Covers reports whether the claims authorize access to the given session.
func (c *Claims) Covers(sessionID string) bool {
	return sessionID != "" && c.SessionID == sessionID
}

// TokenManager issues and validates session tokens. Tokens are HS256-signed
// and stateless; they expire with the configured TTL and cannot be revoked
// early, which is acceptable because a session closes itself on completion.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a token manager from security configuration.
//
// An empty secret generates an ephemeral random one and logs a warning:
// convenient in development, but tokens stop validating on restart. Config
// validation refuses an empty secret in production.
func NewTokenManager(cfg *config.SecurityConfig) (*TokenManager, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		generated, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral secret: %w", err)
		}
		logging.Warn().Msg("JWT_SECRET not set, using an ephemeral secret; session tokens will not survive restarts")
		secret = generated
	}
	if len(secret) < secretMinLength {
		return nil, fmt.Errorf("JWT secret must be at least %d characters", secretMinLength)
	}

	ttl := cfg.SessionTokenTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
	}, nil
}

// IssueToken creates a signed token scoped to one experiment session.
func (m *TokenManager) IssueToken(sessionID, runID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("session ID is required")
	}

	now := time.Now()
	claims := &Claims{
		SessionID: sessionID,
		RunID:     runID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// ValidateToken checks signature, expiry and structure and returns the
// claims. The signing method check rejects algorithm confusion attempts.
func (m *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.SessionID == "" {
		return nil, fmt.Errorf("token carries no session")
	}

	return claims, nil
}

// randomSecret returns a base64-encoded 48-byte secret.
func randomSecret() (string, error) {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
