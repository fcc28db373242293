// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/store"
)

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

// MigratorFactory creates a Migrator for a database URL.
type MigratorFactory func(databaseURL string) (Migrator, error)

func defaultMigratorFactory(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(defaultMigratorFactory)
}

func newMigrateCmd(factory MigratorFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, and inspect the PostgreSQL schema migrations.`,
	}
	addConfigFlags(cmd.PersistentFlags(), "database-url")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, factory, func(m Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all data)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return oops.Code("CONFIRMATION_REQUIRED").
					Errorf("migrate down drops all accounts and tokens; pass --yes to confirm")
			}
			return withMigrator(cmd, factory, func(m Migrator) error {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	}
	down.Flags().Bool("yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, factory, func(m Migrator) error {
				status, err := m.Status()
				if err != nil {
					return err
				}
				printStatus(cmd, status)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, factory, func(m Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Println(formatVersion(version, dirty))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long: `Record VERSION as the current schema version and clear the dirty
flag. Use after manually repairing a failed migration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, factory, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced schema version to %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator opens a Migrator for the configured database, runs fn and closes it.
func withMigrator(cmd *cobra.Command, factory MigratorFactory, fn func(Migrator) error) error {
	databaseURL, err := getDatabaseURL(cmd)
	if err != nil {
		return err
	}

	m, err := factory(databaseURL)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: failed to close migrator: %v\n", closeErr)
		}
	}()
	return fn(m)
}

// getDatabaseURL returns the configured database URL.
func getDatabaseURL(cmd *cobra.Command) (string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database URL is required (--database-url, WARDEN_DATABASE_URL or DATABASE_URL)")
	}
	return cfg.Database.URL, nil
}

// parseForceVersion parses the leading integer of s.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}

func formatVersion(version uint, dirty bool) string {
	if version == 0 {
		return "Schema version: none (no migrations applied)"
	}
	if dirty {
		return fmt.Sprintf("Schema version: %d (dirty)", version)
	}
	return fmt.Sprintf("Schema version: %d", version)
}

func printStatus(cmd *cobra.Command, status *store.Status) {
	cmd.Println(formatVersion(status.Version, status.Dirty))
	for _, m := range status.Applied {
		cmd.Printf("  [applied] %s\n", m.Name)
	}
	for _, m := range status.Pending {
		cmd.Printf("  [pending] %s\n", m.Name)
	}
	if status.Dirty {
		cmd.Println("The database is dirty; repair it and run 'warden migrate force VERSION'.")
	}
}
