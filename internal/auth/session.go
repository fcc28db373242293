// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token defaults.
const (
	DefaultSessionIssuer   = "warden"
	DefaultSessionAudience = "warden-users"
	DefaultSessionLifetime = 7 * 24 * time.Hour

	// MinSessionSecretLength is the minimum HMAC secret size in bytes.
	MinSessionSecretLength = 32
)

// SessionConfig configures a SessionIssuer.
type SessionConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Lifetime time.Duration

	// Clock is optional and defaults to time.Now.
	Clock Clock
}

// SessionIssuer issues and verifies signed, stateless session tokens.
type SessionIssuer struct {
	secret   []byte
	issuer   string
	audience string
	lifetime time.Duration
	now      Clock
}

// NewSessionIssuer creates a SessionIssuer. Empty issuer, audience and
// lifetime fall back to the defaults.
func NewSessionIssuer(cfg SessionConfig) (*SessionIssuer, error) {
	if len(cfg.Secret) < MinSessionSecretLength {
		return nil, oops.Code("SESSION_SECRET_INVALID").
			With("min_length", MinSessionSecretLength).
			Errorf("session secret must be at least %d bytes", MinSessionSecretLength)
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultSessionIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultSessionAudience
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultSessionLifetime
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &SessionIssuer{
		secret:   secret,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		lifetime: cfg.Lifetime,
		now:      cfg.Clock,
	}, nil
}

// Issue returns a signed token for accountID and its expiry.
func (s *SessionIssuer) Issue(accountID ulid.ULID) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.lifetime)

	claims := jwt.RegisteredClaims{
		ID:        ulid.Make().String(),
		Subject:   accountID.String(),
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("SESSION_SIGN_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return signed, expiresAt, nil
}

// Verify checks the token's signature and claims and returns the account ID.
func (s *SessionIssuer) Verify(token string) (ulid.ULID, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return ulid.ULID{}, classifyJWTError(err)
	}
	if !parsed.Valid {
		return ulid.ULID{}, oops.Code(CodeSessionMalformed).Errorf("invalid session token")
	}

	accountID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeSessionMalformed).
			With("subject", claims.Subject).
			Errorf("invalid session subject")
	}
	return accountID, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return oops.Code(CodeSessionExpired).Errorf("session token has expired")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return oops.Code(CodeSessionWrongAudience).Errorf("session token audience mismatch")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return oops.Code(CodeSessionWrongIssuer).Errorf("session token issuer mismatch")
	default:
		return oops.Code(CodeSessionMalformed).With("reason", err.Error()).Errorf("invalid session token")
	}
}
