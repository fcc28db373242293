// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package cleanup periodically purges used and expired ephemeral tokens.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// DefaultInterval is how often the worker purges tokens.
const DefaultInterval = time.Hour

// TokenCleaner removes used and expired tokens and reports how many.
type TokenCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Observer is told how many tokens each pass removed.
type Observer interface {
	TokensCleaned(n int64)
}

type nopObserver struct{}

func (nopObserver) TokensCleaned(int64) {}

// Worker runs a TokenCleaner on a fixed interval.
type Worker struct {
	cleaner  TokenCleaner
	interval time.Duration
	observer Observer
	logger   *slog.Logger
}

// NewWorker creates a Worker. A zero interval uses DefaultInterval.
func NewWorker(cleaner TokenCleaner, interval time.Duration, observer Observer, logger *slog.Logger) (*Worker, error) {
	if cleaner == nil {
		return nil, oops.Errorf("token cleaner is required")
	}
	if interval < 0 {
		return nil, oops.With("interval", interval).Errorf("cleanup interval must not be negative")
	}
	if interval == 0 {
		interval = DefaultInterval
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{cleaner: cleaner, interval: interval, observer: observer, logger: logger}, nil
}

// RunOnce performs a single purge.
func (w *Worker) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	removed, err := w.cleaner.CleanupExpired(ctx)
	if err != nil {
		return 0, oops.With("operation", "token cleanup").Wrap(err)
	}
	w.observer.TokensCleaned(removed)
	w.logger.InfoContext(ctx, "token cleanup completed",
		"removed", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return removed, nil
}

// Run purges once immediately and then every interval until ctx is done.
// Failed passes are logged and retried on the next tick.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "token cleanup worker started", "interval", w.interval)
	w.pass(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("token cleanup worker stopped")
			return
		case <-ticker.C:
			w.pass(ctx)
		}
	}
}

func (w *Worker) pass(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "token cleanup failed", "error", err)
	}
}
