// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/models"
)

type contextKey string

// ClaimsContextKey is the context key under which validated claims are stored.
const ClaimsContextKey contextKey = "claims"

var (
	errMissingToken    = errors.New("missing session token")
	errMalformedHeader = errors.New("invalid authorization header")
)

// Middleware provides session token enforcement, per-client rate limiting
// and CORS handling for the API router. All wrappers are chi-compatible
// func(http.Handler) http.Handler. CORS and rate limiting delegate to
// go-chi/cors and go-chi/httprate; what this package adds is the session
// token check and the trusted-proxy client identification both limiters
// key on.
type Middleware struct {
	tokens         *TokenManager
	trustedProxies map[string]bool
	cors           func(http.Handler) http.Handler
	rateLimit      func(http.Handler) http.Handler
}

// NewMiddleware creates middleware from API configuration.
func NewMiddleware(tokens *TokenManager, cfg *config.APIConfig, trustedProxies []string) *Middleware {
	trustedMap := make(map[string]bool)
	for _, proxy := range trustedProxies {
		trustedMap[proxy] = true
	}

	m := &Middleware{
		tokens:         tokens,
		trustedProxies: trustedMap,
	}

	m.cors = cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	})

	if cfg.RateLimitDisabled {
		m.rateLimit = func(next http.Handler) http.Handler { return next }
	} else {
		m.rateLimit = httprate.Limit(
			cfg.RateLimitReqs,
			cfg.RateLimitWindow,
			httprate.WithKeyFuncs(m.rateLimitKey),
			httprate.WithLimitHandler(rateLimitExceeded),
		)
	}

	return m
}

// RequireSessionToken enforces a valid session token. Handlers read the
// claims with GetClaims and check Covers against the session in the path;
// the token proves possession, the handler proves scope.
func (m *Middleware) RequireSessionToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := m.extractToken(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			logging.Debug().Err(err).Msg("Session token validation failed")
			writeAuthError(w, http.StatusUnauthorized, "invalid or expired session token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken reads the token from the Authorization header or, failing
// that, the token cookie.
func (m *Middleware) extractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		cookie, err := r.Cookie("token")
		if err != nil {
			return "", errMissingToken
		}
		return cookie.Value, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errMalformedHeader
	}
	return parts[1], nil
}

// GetClaims retrieves validated claims from the request context, or nil
// when the request did not pass RequireSessionToken.
func GetClaims(ctx context.Context) *Claims {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// RateLimit enforces per-client request limits via go-chi/httprate, keyed
// by the trusted-proxy-aware client IP. A no-op when disabled in config.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return m.rateLimit(next)
}

// rateLimitKey is the httprate key function: one counter per client IP.
func (m *Middleware) rateLimitKey(r *http.Request) (string, error) {
	return m.clientIP(r), nil
}

// rateLimitExceeded answers a limited request in the standard envelope
// instead of httprate's plain-text default.
func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	writeEnvelopeError(w, http.StatusTooManyRequests, models.ErrCodeRateLimit, "too many requests")
}

// CORS handles origin headers and preflight via go-chi/cors. An unlisted
// origin gets no allow header; the browser enforces the rest.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return m.cors(next)
}

// clientIP resolves the caller's address, honoring forwarding headers only
// from trusted proxies.
func (m *Middleware) clientIP(r *http.Request) string {
	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if len(m.trustedProxies) == 0 || !m.trustedProxies[remoteIP] {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	return remoteIP
}

// writeAuthError writes an authentication failure in the standard envelope.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	writeEnvelopeError(w, status, models.ErrCodeAuthentication, message)
}

func writeEnvelopeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := models.APIResponse{
		Status: "error",
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode error response")
	}
}
