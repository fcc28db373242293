// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/cleanup"
	"github.com/holomush/warden/internal/config"
)

// NewCleanupCmd creates the cleanup subcommand.
func NewCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete used and expired tokens once",
		Long: `Delete every used or expired verification and password reset token,
then exit. The serve command runs the same purge on a timer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runCleanup(cmd.Context(), cmd, cfg, openBackend)
		},
	}
	addConfigFlags(cmd.Flags(), "database-url")
	return cmd
}

func runCleanup(
	ctx context.Context,
	cmd *cobra.Command,
	cfg *config.Config,
	open func(context.Context, config.DatabaseConfig) (*Backend, error),
) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Database.Driver != config.StorePostgres {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.driver").
			Errorf("cleanup requires the postgres store, got %q", cfg.Database.Driver)
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database URL is required (--database-url, WARDEN_DATABASE_URL or DATABASE_URL)")
	}

	backend, err := open(ctx, cfg.Database)
	if err != nil {
		return oops.With("operation", "open store").Wrap(err)
	}
	defer backend.close()

	tokens, err := auth.NewTokenStore(backend.Tokens, auth.WithTokenTimeout(cfg.Database.Timeout))
	if err != nil {
		return oops.With("operation", "create token store").Wrap(err)
	}
	worker, err := cleanup.NewWorker(tokens, cfg.Token.CleanupInterval, nil, slog.Default())
	if err != nil {
		return oops.With("operation", "create cleanup worker").Wrap(err)
	}

	removed, err := worker.RunOnce(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Removed %d expired or used tokens\n", removed)
	return nil
}
