// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/pkg/errutil"
)

// Enqueuer accepts messages for asynchronous delivery.
type Enqueuer interface {
	Enqueue(msg *Message) bool
}

// Notifier renders account emails and hands them to an Enqueuer. It never
// blocks on delivery.
type Notifier struct {
	renderer *Renderer
	queue    Enqueuer
	logger   *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(renderer *Renderer, queue Enqueuer, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{renderer: renderer, queue: queue, logger: logger}
}

// SendVerification queues the verification email.
func (n *Notifier) SendVerification(ctx context.Context, account *auth.Account, token *auth.IssuedToken) {
	n.send(ctx, KindVerification, account, token)
}

// SendPasswordReset queues the password reset email.
func (n *Notifier) SendPasswordReset(ctx context.Context, account *auth.Account, token *auth.IssuedToken) {
	n.send(ctx, KindPasswordReset, account, token)
}

func (n *Notifier) send(ctx context.Context, kind string, account *auth.Account, token *auth.IssuedToken) {
	msg, err := n.renderer.Render(kind, account.Email, account.Username, token.Value)
	if err != nil {
		errutil.LogError(ctx, n.logger, "email render failed", err,
			"kind", kind,
			"account_id", account.ID.String(),
		)
		return
	}
	n.queue.Enqueue(msg)
}

var _ auth.Notifier = (*Notifier)(nil)
