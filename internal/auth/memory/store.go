// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides in-process implementations of the auth
// repositories. State lives only as long as the process.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
)

// Store implements auth.AccountRepository and auth.TokenRepository. One
// mutex guards both so every read-modify-write is atomic.
type Store struct {
	mu       sync.Mutex
	accounts map[ulid.ULID]*auth.Account
	tokens   map[string]*auth.EphemeralToken // keyed by token hash
}

// Compile-time interface checks.
var (
	_ auth.AccountRepository = (*Store)(nil)
	_ auth.TokenRepository   = (*Store)(nil)
)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[ulid.ULID]*auth.Account),
		tokens:   make(map[string]*auth.EphemeralToken),
	}
}

// Create stores a new account.
func (s *Store) Create(ctx context.Context, account *auth.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Email is checked across all accounts first so it wins when both collide.
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return auth.NewDuplicateError(auth.CodeDuplicateEmail, "email", account.Email)
		}
	}
	for _, existing := range s.accounts {
		if existing.Username == account.Username {
			return auth.NewDuplicateError(auth.CodeDuplicateUsername, "username", account.Username)
		}
	}
	s.accounts[account.ID] = copyAccount(account)
	return nil
}

// GetByID retrieves an account by ID.
func (s *Store) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, auth.NewNotFoundError("id", id.String())
	}
	return copyAccount(account), nil
}

// GetByEmail retrieves an account by email, case-insensitively.
func (s *Store) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if strings.EqualFold(account.Email, email) {
			return copyAccount(account), nil
		}
	}
	return nil, auth.NewNotFoundError("email", email)
}

// RecordFailedLogin applies policy to the stored failure state.
func (s *Store) RecordFailedLogin(ctx context.Context, id ulid.ULID, policy auth.LockoutPolicy, now time.Time) (*auth.Account, error) {
	return s.update(ctx, id, func(a *auth.Account) error {
		a.FailedLogins, a.LockedUntil = policy.ApplyFailure(a.FailedLogins, a.LockedUntil, now)
		a.UpdatedAt = now
		return nil
	})
}

// RecordSuccessfulLogin clears failures and the lock and stamps the login.
func (s *Store) RecordSuccessfulLogin(ctx context.Context, id ulid.ULID, now time.Time) (*auth.Account, error) {
	return s.update(ctx, id, func(a *auth.Account) error {
		a.FailedLogins = 0
		a.LockedUntil = nil
		loginAt := now
		a.LastLoginAt = &loginAt
		a.UpdatedAt = now
		return nil
	})
}

// MarkVerified sets the verified flag.
func (s *Store) MarkVerified(ctx context.Context, id ulid.ULID, now time.Time) error {
	_, err := s.update(ctx, id, func(a *auth.Account) error {
		if a.Verified {
			return oops.Code(auth.CodeAlreadyVerified).
				With("account_id", id.String()).
				Errorf("email address is already verified")
		}
		a.Verified = true
		a.UpdatedAt = now
		return nil
	})
	return err
}

// ReplacePassword stores a new hash and clears the lockout state.
func (s *Store) ReplacePassword(ctx context.Context, id ulid.ULID, passwordHash string, now time.Time) error {
	_, err := s.update(ctx, id, func(a *auth.Account) error {
		a.PasswordHash = passwordHash
		a.FailedLogins = 0
		a.LockedUntil = nil
		a.UpdatedAt = now
		return nil
	})
	return err
}

// UpgradePasswordHash replaces the stored hash.
func (s *Store) UpgradePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	_, err := s.update(ctx, id, func(a *auth.Account) error {
		a.PasswordHash = passwordHash
		return nil
	})
	return err
}

// Replace deletes every token for the account and purpose and stores token.
func (s *Store) Replace(ctx context.Context, token *auth.EphemeralToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(func(t *auth.EphemeralToken) bool {
		return t.AccountID == token.AccountID && t.Purpose == token.Purpose
	})
	s.tokens[token.TokenHash] = copyToken(token)
	return nil
}

// Redeem marks the token used if it is redeemable for purpose.
func (s *Store) Redeem(ctx context.Context, tokenHash string, purpose auth.Purpose, now time.Time) (*auth.EphemeralToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[tokenHash]
	if !ok || token.Purpose != purpose || !token.IsRedeemable(now) {
		var found *auth.EphemeralToken
		if ok {
			found = token
		}
		return nil, auth.ClassifyUnredeemable(found, purpose, now)
	}

	usedAt := now
	token.Used = true
	token.UsedAt = &usedAt
	return copyToken(token), nil
}

// DeleteByAccount removes all tokens of a purpose for an account.
func (s *Store) DeleteByAccount(ctx context.Context, accountID ulid.ULID, purpose auth.Purpose) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(func(t *auth.EphemeralToken) bool {
		return t.AccountID == accountID && t.Purpose == purpose
	})
	return nil
}

// DeleteExpired removes used and expired tokens.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.deleteLocked(func(t *auth.EphemeralToken) bool {
		return t.Used || t.IsExpired(now)
	})
	return removed, nil
}

// Ping satisfies readiness checks; the memory store is always ready.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) update(ctx context.Context, id ulid.ULID, fn func(*auth.Account) error) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, auth.NewNotFoundError("id", id.String())
	}
	// Mutate a copy so a rejected update leaves the stored account untouched.
	updated := copyAccount(account)
	if err := fn(updated); err != nil {
		return nil, err
	}
	s.accounts[id] = updated
	return copyAccount(updated), nil
}

func (s *Store) deleteLocked(match func(*auth.EphemeralToken) bool) int64 {
	var removed int64
	for hash, t := range s.tokens {
		if match(t) {
			delete(s.tokens, hash)
			removed++
		}
	}
	return removed
}

func copyAccount(a *auth.Account) *auth.Account {
	c := *a
	c.LockedUntil = copyTime(a.LockedUntil)
	c.LastLoginAt = copyTime(a.LastLoginAt)
	return &c
}

func copyToken(t *auth.EphemeralToken) *auth.EphemeralToken {
	c := *t
	c.UsedAt = copyTime(t.UsedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
