// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/mail"
)

// mailVerifyTimeout bounds the transport check.
const mailVerifyTimeout = 30 * time.Second

// NewMailCmd creates the mail command group.
func NewMailCmd() *cobra.Command {
	return newMailCmd(mail.NewSender)
}

func newMailCmd(factory func(ctx context.Context, cfg mail.Config, logger *slog.Logger) (mail.Sender, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Mail transport tools",
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check that the configured mail transport accepts connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, mailVerifyTimeout)
			defer cancel()

			sender, err := factory(ctx, cfg.Mail.Config, slog.Default())
			if err != nil {
				return oops.With("operation", "create mail sender").Wrap(err)
			}
			if err := sender.Verify(ctx); err != nil {
				cmd.PrintErrf("Mail transport %q failed verification: %v\n", cfg.Mail.Driver, err)
				return err
			}
			cmd.Printf("Mail transport %q is ready\n", cfg.Mail.Driver)
			return nil
		},
	}
	addConfigFlags(verify.Flags(), "mail-driver")
	cmd.AddCommand(verify)

	return cmd
}
