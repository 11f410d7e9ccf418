// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

/*
Package auth provides session token issuance, token enforcement middleware,
rate limiting and CORS for the HTTP API.

Participants are anonymous, so there are no accounts: the unit of identity
is the experiment session. A pipeline run that builds a session also issues
an HS256-signed JWT scoped to it, returned alongside the blinded session
payload. Mutating requests (choice submission) must present that token; the
middleware validates it and the handler checks that the claims cover the
session addressed in the path.

Key Components:

  - TokenManager: session token generation and validation (HMAC-SHA256)
  - Middleware: RequireSessionToken, RateLimit and CORS wrappers for chi

Rate limiting and CORS delegate to go-chi/httprate and go-chi/cors; the
limiter is keyed by a client IP that honors X-Forwarded-For only from
configured trusted proxies.

Tokens are stateless and expire with SESSION_TOKEN_TTL (default 24h). They
cannot be revoked early; a completed session refuses further submissions
regardless of token validity.

Usage:

	tokens, err := auth.NewTokenManager(&cfg.Security)
	if err != nil {
	    return err
	}
	mw := auth.NewMiddleware(tokens, &cfg.API, nil)

	r.Use(mw.CORS, mw.RateLimit)
	r.With(mw.RequireSessionToken).Post("/sessions/{id}/choices", h.SubmitChoice)
*/
package auth
