// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/mail"
)

type fakeSender struct {
	mu       sync.Mutex
	calls    int
	sent     []*mail.Message
	failures int
	err      error
	block    chan struct{}
}

func (s *fakeSender) Send(ctx context.Context, msg *mail.Message) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) Verify(context.Context) error { return nil }

func (s *fakeSender) snapshot() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, len(s.sent)
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses map[string]int
}

func (o *recordingObserver) MailDelivered(_, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.statuses == nil {
		o.statuses = map[string]int{}
	}
	o.statuses[status]++
}

func (o *recordingObserver) count(status string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statuses[status]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func fastConfig() mail.DispatcherConfig {
	return mail.DispatcherConfig{
		QueueSize:      4,
		Workers:        1,
		MaxRetries:     2,
		RetryBackoff:   time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func startDispatcher(t *testing.T, sender mail.Sender, cfg mail.DispatcherConfig, obs mail.DeliveryObserver) *mail.Dispatcher {
	t.Helper()
	d, err := mail.NewDispatcher(sender, cfg, obs, quietLogger())
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	return d
}

func stop(t *testing.T, d *mail.Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcher_DeliversQueuedMessages(t *testing.T) {
	sender := &fakeSender{}
	obs := &recordingObserver{}
	d := startDispatcher(t, sender, fastConfig(), obs)

	assert.True(t, d.Enqueue(testMessage()))
	assert.True(t, d.Enqueue(testMessage()))
	stop(t, d)

	_, sent := sender.snapshot()
	assert.Equal(t, 2, sent)
	assert.Equal(t, 2, obs.count(mail.StatusSent))
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	sender := &fakeSender{failures: 2, err: errors.New("connection reset")}
	obs := &recordingObserver{}
	d := startDispatcher(t, sender, fastConfig(), obs)

	d.Enqueue(testMessage())
	stop(t, d)

	calls, sent := sender.snapshot()
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, obs.count(mail.StatusSent))
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	sender := &fakeSender{failures: 10, err: errors.New("connection reset")}
	obs := &recordingObserver{}
	d := startDispatcher(t, sender, fastConfig(), obs)

	d.Enqueue(testMessage())
	stop(t, d)

	calls, sent := sender.snapshot()
	assert.Equal(t, 3, calls)
	assert.Zero(t, sent)
	assert.Equal(t, 1, obs.count(mail.StatusFailed))
}

func TestDispatcher_DoesNotRetryUnconfiguredTransport(t *testing.T) {
	sender := &fakeSender{failures: 10, err: oops.Code(mail.CodeNotConfigured).Errorf("email service not configured")}
	obs := &recordingObserver{}
	d := startDispatcher(t, sender, fastConfig(), obs)

	d.Enqueue(testMessage())
	stop(t, d)

	calls, _ := sender.snapshot()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, obs.count(mail.StatusFailed))
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	obs := &recordingObserver{}
	cfg := fastConfig()
	cfg.QueueSize = 1
	d := startDispatcher(t, sender, cfg, obs)

	// The worker takes the first message and blocks; the second fills the queue.
	require.True(t, d.Enqueue(testMessage()))
	require.Eventually(t, func() bool { return d.Enqueue(testMessage()) }, time.Second, time.Millisecond)
	assert.False(t, d.Enqueue(testMessage()))
	assert.GreaterOrEqual(t, obs.count(mail.StatusDropped), 1)

	close(sender.block)
	stop(t, d)
}

func TestDispatcher_EnqueueAfterStopDrops(t *testing.T) {
	obs := &recordingObserver{}
	d := startDispatcher(t, &fakeSender{}, fastConfig(), obs)
	stop(t, d)

	assert.False(t, d.Enqueue(testMessage()))
	assert.Equal(t, 1, obs.count(mail.StatusDropped))
	assert.NoError(t, d.Stop(context.Background()))
}

func TestDispatcher_StopTimesOutAndCancelsDeliveries(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	d := startDispatcher(t, sender, fastConfig(), nil)
	d.Enqueue(testMessage())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcher_StartTwiceFails(t *testing.T) {
	d := startDispatcher(t, &fakeSender{}, fastConfig(), nil)
	assert.Error(t, d.Start(context.Background()))
	stop(t, d)
}

func TestNewDispatcher_RequiresSender(t *testing.T) {
	_, err := mail.NewDispatcher(nil, mail.DispatcherConfig{}, nil, nil)
	assert.Error(t, err)
}
