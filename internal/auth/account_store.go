// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultStoreTimeout bounds every repository call made by the stores.
const DefaultStoreTimeout = 5 * time.Second

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// AccountStore applies account rules (hashing, normalization, lockout) on
// top of an AccountRepository.
type AccountStore struct {
	repo    AccountRepository
	hasher  PasswordHasher
	policy  LockoutPolicy
	timeout time.Duration
	now     Clock
}

// AccountStoreOption configures an AccountStore.
type AccountStoreOption func(*AccountStore)

// WithLockoutPolicy overrides the default lockout policy.
func WithLockoutPolicy(p LockoutPolicy) AccountStoreOption {
	return func(s *AccountStore) { s.policy = p }
}

// WithAccountTimeout overrides the per-call store timeout.
func WithAccountTimeout(d time.Duration) AccountStoreOption {
	return func(s *AccountStore) { s.timeout = d }
}

// WithAccountClock overrides the clock.
func WithAccountClock(c Clock) AccountStoreOption {
	return func(s *AccountStore) { s.now = c }
}

// NewAccountStore creates an AccountStore.
func NewAccountStore(repo AccountRepository, hasher PasswordHasher, opts ...AccountStoreOption) (*AccountStore, error) {
	if repo == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	s := &AccountStore{
		repo:    repo,
		hasher:  hasher,
		policy:  DefaultLockoutPolicy(),
		timeout: DefaultStoreTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.Threshold <= 0 || s.policy.Window <= 0 {
		return nil, oops.With("threshold", s.policy.Threshold).
			With("window", s.policy.Window).
			Errorf("lockout policy must have a positive threshold and window")
	}
	return s, nil
}

// Policy returns the lockout policy in force.
func (s *AccountStore) Policy() LockoutPolicy {
	return s.policy
}

// Hasher returns the password hasher used by the store.
func (s *AccountStore) Hasher() PasswordHasher {
	return s.hasher
}

// Create hashes the password and stores a new unverified account.
func (s *AccountStore) Create(ctx context.Context, username, email, password string) (*Account, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.With("operation", "hash password").Wrap(err)
	}

	account, err := NewAccount(username, email, hash)
	if err != nil {
		return nil, err
	}

	err = s.call(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, account)
	})
	if err != nil {
		return nil, s.wrap(err, "create account")
	}
	return account, nil
}

// FindByEmail looks up an account by email, case-insensitively.
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var account *Account
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.repo.GetByEmail(ctx, email)
		return err
	})
	if err != nil {
		return nil, s.wrap(err, "find account by email")
	}
	return account, nil
}

// FindByID looks up an account by ID.
func (s *AccountStore) FindByID(ctx context.Context, id ulid.ULID) (*Account, error) {
	var account *Account
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.wrap(err, "find account by id")
	}
	return account, nil
}

// RecordFailedLogin counts a failed attempt and locks the account once the
// policy threshold is reached.
func (s *AccountStore) RecordFailedLogin(ctx context.Context, account *Account) (*Account, error) {
	var updated *Account
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.RecordFailedLogin(ctx, account.ID, s.policy, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, s.wrap(err, "record failed login")
	}
	return updated, nil
}

// RecordSuccessfulLogin clears the failure counter and lock and stamps the login time.
func (s *AccountStore) RecordSuccessfulLogin(ctx context.Context, account *Account) (*Account, error) {
	var updated *Account
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.RecordSuccessfulLogin(ctx, account.ID, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, s.wrap(err, "record successful login")
	}
	return updated, nil
}

// MarkVerified marks the account verified. Fails with CodeAlreadyVerified if it already is.
func (s *AccountStore) MarkVerified(ctx context.Context, account *Account) error {
	if account.Verified {
		return oops.Code(CodeAlreadyVerified).
			With("account_id", account.ID.String()).
			Errorf("email address is already verified")
	}
	err := s.call(ctx, func(ctx context.Context) error {
		return s.repo.MarkVerified(ctx, account.ID, s.now().UTC())
	})
	if err != nil {
		return s.wrap(err, "mark verified")
	}
	account.Verified = true
	return nil
}

// ReplacePassword re-hashes and stores a new password and clears the lockout state.
func (s *AccountStore) ReplacePassword(ctx context.Context, account *Account, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.With("operation", "hash password").Wrap(err)
	}
	err = s.call(ctx, func(ctx context.Context) error {
		return s.repo.ReplacePassword(ctx, account.ID, hash, s.now().UTC())
	})
	if err != nil {
		return s.wrap(err, "replace password")
	}
	account.PasswordHash = hash
	account.FailedLogins = 0
	account.LockedUntil = nil
	return nil
}

// UpgradeHash re-hashes password with current parameters if the stored hash is outdated.
func (s *AccountStore) UpgradeHash(ctx context.Context, account *Account, password string) error {
	if !s.hasher.NeedsUpgrade(account.PasswordHash) {
		return nil
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.With("operation", "hash password").Wrap(err)
	}
	err = s.call(ctx, func(ctx context.Context) error {
		return s.repo.UpgradePasswordHash(ctx, account.ID, hash)
	})
	if err != nil {
		return s.wrap(err, "upgrade password hash")
	}
	account.PasswordHash = hash
	return nil
}

// IsLocked reports whether the account is locked now.
func (s *AccountStore) IsLocked(account *Account) bool {
	return account.IsLocked(s.now())
}

func (s *AccountStore) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return callWithTimeout(ctx, s.timeout, fn)
}

func (s *AccountStore) wrap(err error, operation string) error {
	return wrapStoreError(err, operation)
}

// callWithTimeout runs fn under the store deadline.
func callWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

// wrapStoreError passes coded errors through and turns deadline expiry into
// CodeStoreUnavailable.
func wrapStoreError(err error, operation string) error {
	if Code(err) == "" && storeUnavailable(err) {
		return oops.Code(CodeStoreUnavailable).
			With("operation", operation).
			Wrap(err)
	}
	return oops.With("operation", operation).Wrap(err)
}
