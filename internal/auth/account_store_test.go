// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/mocks"
	"github.com/holomush/warden/pkg/errutil"
)

func TestNewAccountStore_NilDependencies(t *testing.T) {
	tests := []struct {
		name        string
		repo        auth.AccountRepository
		hasher      auth.PasswordHasher
		expectError string
	}{
		{
			name:        "nil repository",
			hasher:      mocks.NewMockPasswordHasher(t),
			expectError: "account repository is required",
		},
		{
			name:        "nil password hasher",
			repo:        mocks.NewMockAccountRepository(t),
			expectError: "password hasher is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := auth.NewAccountStore(tt.repo, tt.hasher)
			require.Error(t, err)
			assert.Nil(t, store)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestNewAccountStore_InvalidPolicy(t *testing.T) {
	_, err := auth.NewAccountStore(mocks.NewMockAccountRepository(t), mocks.NewMockPasswordHasher(t),
		auth.WithLockoutPolicy(auth.LockoutPolicy{Threshold: 0, Window: time.Minute}))
	require.Error(t, err)
}

func TestAccountStore_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("hashes password and normalizes email", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		store, err := auth.NewAccountStore(repo, hasher)
		require.NoError(t, err)

		hasher.On("Hash", "Passw0rd!").Return("$argon2id$hashed", nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(a *auth.Account) bool {
			return a.Email == "alice@example.com" && a.PasswordHash == "$argon2id$hashed" && !a.Verified
		})).Return(nil)

		account, err := store.Create(ctx, "alice", "Alice@Example.com", "Passw0rd!")
		require.NoError(t, err)
		assert.Equal(t, "alice", account.Username)
	})

	t.Run("passes duplicate errors through", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		store, err := auth.NewAccountStore(repo, hasher)
		require.NoError(t, err)

		hasher.On("Hash", "Passw0rd!").Return("$argon2id$hashed", nil)
		repo.On("Create", mock.Anything, mock.Anything).
			Return(auth.NewDuplicateError(auth.CodeDuplicateUsername, "username", "alice"))

		_, err = store.Create(ctx, "alice", "alice@example.com", "Passw0rd!")
		errutil.AssertErrorCode(t, err, auth.CodeDuplicateUsername)
	})

	t.Run("rejects empty password before hashing", func(t *testing.T) {
		store, err := auth.NewAccountStore(mocks.NewMockAccountRepository(t), mocks.NewMockPasswordHasher(t))
		require.NoError(t, err)

		_, err = store.Create(ctx, "alice", "alice@example.com", "")
		errutil.AssertErrorCode(t, err, auth.CodeEmptyPassword)
	})
}

func TestAccountStore_Timeout(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store, err := auth.NewAccountStore(repo, mocks.NewMockPasswordHasher(t),
		auth.WithAccountTimeout(10*time.Millisecond))
	require.NoError(t, err)

	repo.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(func(ctx context.Context, _ string) (*auth.Account, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	_, err = store.FindByEmail(context.Background(), "alice@example.com")
	errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
	assert.Equal(t, auth.KindTransient, auth.KindOf(err))
}

func TestAccountStore_NotFoundPassesThrough(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store, err := auth.NewAccountStore(repo, mocks.NewMockPasswordHasher(t))
	require.NoError(t, err)

	id := ulid.Make()
	repo.On("GetByID", mock.Anything, id).Return(nil, auth.NewNotFoundError("id", id.String()))

	_, err = store.FindByID(context.Background(), id)
	assert.True(t, errors.Is(err, auth.ErrNotFound))
	errutil.AssertErrorCode(t, err, auth.CodeAccountNotFound)
	errutil.AssertErrorContext(t, err, "operation", "find account by id")
}

func TestAccountStore_RecordFailedLogin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := mocks.NewMockAccountRepository(t)
	policy := auth.LockoutPolicy{Threshold: 3, Window: time.Minute}
	store, err := auth.NewAccountStore(repo, mocks.NewMockPasswordHasher(t),
		auth.WithLockoutPolicy(policy),
		auth.WithAccountClock(fixedClock(now)))
	require.NoError(t, err)

	account := &auth.Account{ID: ulid.Make()}
	updated := &auth.Account{ID: account.ID, FailedLogins: 1}
	repo.On("RecordFailedLogin", mock.Anything, account.ID, policy, now).Return(updated, nil)

	got, err := store.RecordFailedLogin(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 1, got.FailedLogins)
}

func TestAccountStore_MarkVerified(t *testing.T) {
	ctx := context.Background()

	t.Run("already verified fails without a store call", func(t *testing.T) {
		store, err := auth.NewAccountStore(mocks.NewMockAccountRepository(t), mocks.NewMockPasswordHasher(t))
		require.NoError(t, err)

		err = store.MarkVerified(ctx, &auth.Account{ID: ulid.Make(), Verified: true})
		errutil.AssertErrorCode(t, err, auth.CodeAlreadyVerified)
	})

	t.Run("sets flag", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		store, err := auth.NewAccountStore(repo, mocks.NewMockPasswordHasher(t))
		require.NoError(t, err)

		account := &auth.Account{ID: ulid.Make()}
		repo.On("MarkVerified", mock.Anything, account.ID, mock.AnythingOfType("time.Time")).Return(nil)

		require.NoError(t, store.MarkVerified(ctx, account))
		assert.True(t, account.Verified)
	})
}

func TestAccountStore_ReplacePassword(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	store, err := auth.NewAccountStore(repo, hasher)
	require.NoError(t, err)

	lockedUntil := time.Now().Add(time.Hour)
	account := &auth.Account{ID: ulid.Make(), PasswordHash: "old", FailedLogins: 5, LockedUntil: &lockedUntil}

	hasher.On("Hash", "N3wPassword").Return("new", nil)
	repo.On("ReplacePassword", mock.Anything, account.ID, "new", mock.AnythingOfType("time.Time")).Return(nil)

	require.NoError(t, store.ReplacePassword(context.Background(), account, "N3wPassword"))
	assert.Equal(t, "new", account.PasswordHash)
	assert.Zero(t, account.FailedLogins)
	assert.Nil(t, account.LockedUntil)
}

func TestAccountStore_UpgradeHash(t *testing.T) {
	ctx := context.Background()

	t.Run("skips current hashes", func(t *testing.T) {
		hasher := mocks.NewMockPasswordHasher(t)
		store, err := auth.NewAccountStore(mocks.NewMockAccountRepository(t), hasher)
		require.NoError(t, err)

		hasher.On("NeedsUpgrade", "current").Return(false)
		require.NoError(t, store.UpgradeHash(ctx, &auth.Account{PasswordHash: "current"}, "pw"))
	})

	t.Run("rehashes legacy hashes", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		store, err := auth.NewAccountStore(repo, hasher)
		require.NoError(t, err)

		account := &auth.Account{ID: ulid.Make(), PasswordHash: "$2b$10$legacy"}
		hasher.On("NeedsUpgrade", account.PasswordHash).Return(true)
		hasher.On("Hash", "pw").Return("$argon2id$new", nil)
		repo.On("UpgradePasswordHash", mock.Anything, account.ID, "$argon2id$new").Return(nil)

		require.NoError(t, store.UpgradeHash(ctx, account, "pw"))
		assert.Equal(t, "$argon2id$new", account.PasswordHash)
	})
}
