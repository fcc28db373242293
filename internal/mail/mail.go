// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mail renders and delivers account emails.
//
// A Sender delivers one Message through a transport (log, smtp or ses). The
// Dispatcher queues messages and delivers them on background workers with
// retries, so a slow or failing transport never blocks an auth flow. Notifier
// adapts the Dispatcher to auth.Notifier.
package mail

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// Error codes.
const (
	CodeNotConfigured = "MAIL_NOT_CONFIGURED"
	CodeSendFailed    = "MAIL_SEND_FAILED"
	CodeRenderFailed  = "MAIL_RENDER_FAILED"
	CodeDriverUnknown = "MAIL_DRIVER_UNKNOWN"
)

// Message kinds.
const (
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"
)

// Transport drivers.
const (
	DriverLog  = "log"
	DriverSMTP = "smtp"
	DriverSES  = "ses"
)

// Message is a rendered email ready for delivery.
type Message struct {
	Kind    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages through a single transport.
type Sender interface {
	Send(ctx context.Context, msg *Message) error

	// Verify checks that the transport is configured and reachable.
	Verify(ctx context.Context) error
}

// Config selects and configures a transport.
type Config struct {
	Driver   string `koanf:"driver"`
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`

	// BaseURL is the frontend origin used in verification and reset links.
	BaseURL string `koanf:"base_url"`

	SMTP SMTPConfig `koanf:"smtp"`
	SES  SESConfig  `koanf:"ses"`
}

// NewSender builds the Sender selected by cfg.Driver. An SMTP driver without
// credentials yields a Sender that fails every delivery with MAIL_NOT_CONFIGURED.
func NewSender(ctx context.Context, cfg Config, logger *slog.Logger) (Sender, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverLog:
		return NewLogSender(logger), nil
	case DriverSMTP:
		if cfg.SMTP.Username == "" || cfg.SMTP.Password == "" {
			if logger != nil {
				logger.Warn("email service not configured: smtp username and password are required")
			}
			return unconfigured{}, nil
		}
		return NewSMTPSender(cfg.SMTP, cfg.From, cfg.FromName)
	case DriverSES:
		client, err := NewSESClient(ctx, cfg.SES.Region)
		if err != nil {
			return nil, err
		}
		return NewSESSender(client, cfg.From, cfg.FromName)
	default:
		return nil, oops.Code(CodeDriverUnknown).
			With("driver", cfg.Driver).
			Errorf("unknown mail driver %q", cfg.Driver)
	}
}

type unconfigured struct{}

func (unconfigured) Send(context.Context, *Message) error {
	return oops.Code(CodeNotConfigured).Errorf("email service not configured")
}

func (unconfigured) Verify(context.Context) error {
	return oops.Code(CodeNotConfigured).Errorf("email service not configured")
}
