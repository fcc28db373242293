// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// IssuedToken is the plaintext token handed to the user, once, at issue time.
type IssuedToken struct {
	Value     string
	AccountID ulid.ULID
	Purpose   Purpose
	ExpiresAt time.Time
}

// TokenStore issues and redeems single-use ephemeral tokens.
type TokenStore struct {
	repo    TokenRepository
	ttl     time.Duration
	timeout time.Duration
	now     Clock
}

// TokenStoreOption configures a TokenStore.
type TokenStoreOption func(*TokenStore)

// WithTokenTTL overrides the token lifetime.
func WithTokenTTL(d time.Duration) TokenStoreOption {
	return func(s *TokenStore) { s.ttl = d }
}

// WithTokenTimeout overrides the per-call store timeout.
func WithTokenTimeout(d time.Duration) TokenStoreOption {
	return func(s *TokenStore) { s.timeout = d }
}

// WithTokenClock overrides the clock.
func WithTokenClock(c Clock) TokenStoreOption {
	return func(s *TokenStore) { s.now = c }
}

// NewTokenStore creates a TokenStore.
func NewTokenStore(repo TokenRepository, opts ...TokenStoreOption) (*TokenStore, error) {
	if repo == nil {
		return nil, oops.Errorf("token repository is required")
	}
	s := &TokenStore{
		repo:    repo,
		ttl:     DefaultTokenTTL,
		timeout: DefaultStoreTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ttl <= 0 {
		return nil, oops.With("ttl", s.ttl).Errorf("token ttl must be positive")
	}
	return s, nil
}

// Issue creates a new token for the account and purpose, superseding any
// outstanding token of the same purpose.
func (s *TokenStore) Issue(ctx context.Context, accountID ulid.ULID, purpose Purpose) (*IssuedToken, error) {
	if !purpose.Valid() {
		return nil, oops.Code("TOKEN_INVALID_PURPOSE").
			With("purpose", string(purpose)).
			Errorf("unknown token purpose")
	}

	value, hash, err := GenerateTokenValue()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	token := &EphemeralToken{
		ID:        ulid.Make(),
		AccountID: accountID,
		Purpose:   purpose,
		TokenHash: hash,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}

	err = callWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
		return s.repo.Replace(ctx, token)
	})
	if err != nil {
		return nil, wrapStoreError(err, "issue token")
	}

	return &IssuedToken{
		Value:     value,
		AccountID: accountID,
		Purpose:   purpose,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// Redeem consumes a token. The returned token's AccountID identifies the
// owning account. Fails with CodeTokenNotFound, CodeTokenExpired,
// CodeTokenAlreadyUsed or CodeTokenWrongPurpose.
func (s *TokenStore) Redeem(ctx context.Context, value string, purpose Purpose) (*EphemeralToken, error) {
	if value == "" {
		return nil, oops.Code(CodeTokenNotFound).Errorf("token cannot be empty")
	}

	var token *EphemeralToken
	err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		token, err = s.repo.Redeem(ctx, HashTokenValue(value), purpose, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, wrapStoreError(err, "redeem token")
	}
	return token, nil
}

// Invalidate removes outstanding tokens of a purpose for an account.
func (s *TokenStore) Invalidate(ctx context.Context, accountID ulid.ULID, purpose Purpose) error {
	err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
		return s.repo.DeleteByAccount(ctx, accountID, purpose)
	})
	if err != nil {
		return wrapStoreError(err, "invalidate tokens")
	}
	return nil
}

// CleanupExpired removes used and expired tokens and returns how many were removed.
func (s *TokenStore) CleanupExpired(ctx context.Context) (int64, error) {
	var removed int64
	err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		removed, err = s.repo.DeleteExpired(ctx, s.now().UTC())
		return err
	})
	if err != nil {
		return 0, wrapStoreError(err, "cleanup expired tokens")
	}
	return removed, nil
}
