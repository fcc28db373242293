// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/postgres"
	"github.com/holomush/warden/pkg/errutil"
)

func createAccount(t *testing.T, username, email string) *auth.Account {
	t.Helper()
	ctx := context.Background()
	account, err := auth.NewAccount(username, email, "hash123")
	require.NoError(t, err)
	account.CreatedAt = account.CreatedAt.Truncate(time.Microsecond)
	account.UpdatedAt = account.UpdatedAt.Truncate(time.Microsecond)

	require.NoError(t, postgres.NewAccountRepository(testPool).Create(ctx, account))
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, account.ID.String())
	})
	return account
}

func TestAccountRepository_Integration_Duplicates(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)
	createAccount(t, "dup_user", "dup@example.com")

	other, err := auth.NewAccount("dup_user2", "dup@example.com", "hash")
	require.NoError(t, err)
	other.Email = "DUP@example.com"
	errutil.AssertErrorCode(t, repo.Create(ctx, other), auth.CodeDuplicateEmail)

	other, err = auth.NewAccount("dup_user", "fresh@example.com", "hash")
	require.NoError(t, err)
	errutil.AssertErrorCode(t, repo.Create(ctx, other), auth.CodeDuplicateUsername)

	// Both unique indexes collide; the email conflict is reported.
	other, err = auth.NewAccount("dup_user", "dup@example.com", "hash")
	require.NoError(t, err)
	other.Email = "DUP@example.com"
	errutil.AssertErrorCode(t, repo.Create(ctx, other), auth.CodeDuplicateEmail)
}

func TestAccountRepository_Integration_Lockout(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)
	account := createAccount(t, "lock_user", "lock@example.com")
	policy := auth.DefaultLockoutPolicy()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("concurrent failures are all counted and lock once", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < policy.Threshold+2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.RecordFailedLogin(ctx, account.ID, policy, now)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stored, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, policy.Threshold+2, stored.FailedLogins)
		require.NotNil(t, stored.LockedUntil)
		assert.True(t, stored.LockedUntil.Equal(now.Add(policy.Window)))
	})

	t.Run("failure after the lock expires restarts the count", func(t *testing.T) {
		later := now.Add(policy.Window + time.Minute)
		stored, err := repo.RecordFailedLogin(ctx, account.ID, policy, later)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.FailedLogins)
		assert.Nil(t, stored.LockedUntil)
	})

	t.Run("success clears failures", func(t *testing.T) {
		stored, err := repo.RecordSuccessfulLogin(ctx, account.ID, now)
		require.NoError(t, err)
		assert.Zero(t, stored.FailedLogins)
		require.NotNil(t, stored.LastLoginAt)
	})
}

func TestAccountRepository_Integration_MarkVerified(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)
	account := createAccount(t, "verify_user", "verify@example.com")

	require.NoError(t, repo.MarkVerified(ctx, account.ID, time.Now()))
	errutil.AssertErrorCode(t, repo.MarkVerified(ctx, account.ID, time.Now()), auth.CodeAlreadyVerified)

	err := repo.MarkVerified(ctx, ulid.Make(), time.Now())
	assert.True(t, errors.Is(err, auth.ErrNotFound))
}

func TestTokenRepository_Integration(t *testing.T) {
	ctx := context.Background()
	tokens := postgres.NewTokenRepository(testPool)
	account := createAccount(t, "token_user", "token@example.com")
	now := time.Now().UTC().Truncate(time.Microsecond)

	issue := func(t *testing.T, purpose auth.Purpose, expiresAt time.Time) string {
		t.Helper()
		_, hash, err := auth.GenerateTokenValue()
		require.NoError(t, err)
		require.NoError(t, tokens.Replace(ctx, &auth.EphemeralToken{
			ID:        ulid.Make(),
			AccountID: account.ID,
			Purpose:   purpose,
			TokenHash: hash,
			ExpiresAt: expiresAt,
			CreatedAt: now,
		}))
		return hash
	}

	t.Run("concurrent redeem succeeds exactly once", func(t *testing.T) {
		hash := issue(t, auth.PurposePasswordReset, now.Add(time.Hour))

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			codes     []string
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := tokens.Redeem(ctx, hash, auth.PurposePasswordReset, now)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					successes++
					return
				}
				codes = append(codes, auth.Code(err))
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		for _, code := range codes {
			assert.Equal(t, auth.CodeTokenAlreadyUsed, code)
		}
	})

	t.Run("replace supersedes the previous token", func(t *testing.T) {
		first := issue(t, auth.PurposeEmailVerification, now.Add(time.Hour))
		second := issue(t, auth.PurposeEmailVerification, now.Add(time.Hour))

		_, err := tokens.Redeem(ctx, first, auth.PurposeEmailVerification, now)
		errutil.AssertErrorCode(t, err, auth.CodeTokenNotFound)
		_, err = tokens.Redeem(ctx, second, auth.PurposeEmailVerification, now)
		require.NoError(t, err)
	})

	t.Run("wrong purpose leaves the token redeemable", func(t *testing.T) {
		hash := issue(t, auth.PurposeEmailVerification, now.Add(time.Hour))

		_, err := tokens.Redeem(ctx, hash, auth.PurposePasswordReset, now)
		errutil.AssertErrorCode(t, err, auth.CodeTokenWrongPurpose)
		_, err = tokens.Redeem(ctx, hash, auth.PurposeEmailVerification, now)
		require.NoError(t, err)
	})

	t.Run("cleanup removes used and expired tokens", func(t *testing.T) {
		issue(t, auth.PurposePasswordReset, now.Add(-time.Minute))

		removed, err := tokens.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, removed, int64(1))

		var remaining int
		require.NoError(t, testPool.QueryRow(ctx, `
			SELECT COUNT(*) FROM ephemeral_tokens WHERE used OR expires_at <= $1
		`, now).Scan(&remaining))
		assert.Zero(t, remaining)
	})
}
