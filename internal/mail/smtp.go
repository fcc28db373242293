// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"time"

	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig configures the smtp driver.
type SMTPConfig struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	SSL      bool          `koanf:"ssl"`
	Timeout  time.Duration `koanf:"timeout"`
}

// SMTPSender delivers messages over SMTP with PLAIN auth. Implicit TLS is
// used when SSL is set; otherwise STARTTLS is used when offered.
type SMTPSender struct {
	client   *gomail.Client
	from     string
	fromName string
}

// NewSMTPSender creates an SMTPSender. No connection is made until Send or Verify.
func NewSMTPSender(cfg SMTPConfig, from, fromName string) (*SMTPSender, error) {
	if from == "" {
		from = cfg.Username
	}

	opts := []gomail.Option{
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	}
	if cfg.SSL {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSOpportunistic))
	}
	if cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code(CodeNotConfigured).
			With("host", cfg.Host).
			With("port", cfg.Port).
			Wrap(err)
	}
	return &SMTPSender{client: client, from: from, fromName: fromName}, nil
}

// Send delivers msg as a multipart text and HTML email.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	m := gomail.NewMsg()
	if err := m.FromFormat(s.fromName, s.from); err != nil {
		return oops.Code(CodeSendFailed).With("from", s.from).Wrap(err)
	}
	if err := m.To(msg.To); err != nil {
		return oops.Code(CodeSendFailed).With("to", msg.To).Wrap(err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return oops.Code(CodeSendFailed).
			With("kind", msg.Kind).
			With("transport", DriverSMTP).
			Wrap(err)
	}
	return nil
}

// Verify dials the server and authenticates.
func (s *SMTPSender) Verify(ctx context.Context) error {
	if err := s.client.DialWithContext(ctx); err != nil {
		return oops.Code(CodeSendFailed).With("transport", DriverSMTP).Wrap(err)
	}
	if err := s.client.Close(); err != nil {
		return oops.Code(CodeSendFailed).With("transport", DriverSMTP).Wrap(err)
	}
	return nil
}
