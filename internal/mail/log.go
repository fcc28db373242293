// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them. It is the
// development default.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message with its plain-text body.
func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // cancellation passes through
	}
	s.logger.InfoContext(ctx, "email (log driver)",
		"kind", msg.Kind,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}

// Verify always succeeds.
func (s *LogSender) Verify(context.Context) error {
	return nil
}
