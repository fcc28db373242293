// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package cleanup_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/memory"
	"github.com/holomush/warden/internal/cleanup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingCleaner struct {
	calls atomic.Int64
	err   error
}

func (c *countingCleaner) CleanupExpired(context.Context) (int64, error) {
	c.calls.Add(1)
	if c.err != nil {
		return 0, c.err
	}
	return 2, nil
}

type totalObserver struct {
	total atomic.Int64
}

func (o *totalObserver) TokensCleaned(n int64) { o.total.Add(n) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestWorker_RunOnceRemovesExpiredTokens(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	account, err := auth.NewAccount("alice", "alice@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, account))

	for _, tok := range []*auth.EphemeralToken{
		{ID: ulid.Make(), AccountID: account.ID, Purpose: auth.PurposeEmailVerification, TokenHash: "a", ExpiresAt: now.Add(-time.Minute)},
		{ID: ulid.Make(), AccountID: account.ID, Purpose: auth.PurposePasswordReset, TokenHash: "b", ExpiresAt: now.Add(time.Hour)},
	} {
		require.NoError(t, store.Replace(ctx, tok))
	}

	tokens, err := auth.NewTokenStore(store, auth.WithTokenClock(func() time.Time { return now }))
	require.NoError(t, err)

	obs := &totalObserver{}
	w, err := cleanup.NewWorker(tokens, time.Minute, obs, quietLogger())
	require.NoError(t, err)

	removed, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, int64(1), obs.total.Load())

	_, err = store.Redeem(ctx, "b", auth.PurposePasswordReset, now)
	assert.NoError(t, err, "unexpired token must survive cleanup")
}

func TestWorker_RunTicksUntilCanceled(t *testing.T) {
	cleaner := &countingCleaner{}
	obs := &totalObserver{}
	w, err := cleanup.NewWorker(cleaner, 5*time.Millisecond, obs, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return cleaner.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	assert.GreaterOrEqual(t, obs.total.Load(), int64(6))
}

func TestWorker_FailedPassKeepsRunning(t *testing.T) {
	cleaner := &countingCleaner{err: errors.New("store down")}
	w, err := cleanup.NewWorker(cleaner, 5*time.Millisecond, nil, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return cleaner.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestNewWorker_Validation(t *testing.T) {
	_, err := cleanup.NewWorker(nil, time.Minute, nil, nil)
	assert.Error(t, err)

	_, err = cleanup.NewWorker(&countingCleaner{}, -time.Second, nil, nil)
	assert.Error(t, err)

	w, err := cleanup.NewWorker(&countingCleaner{}, 0, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, w)
}
