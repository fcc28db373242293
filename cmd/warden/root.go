// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Warden CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warden",
		Short: "Warden - account registration and credential service",
		Long: `Warden registers accounts, verifies email addresses, authenticates
logins with lockout protection, and handles password resets.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, default $XDG_CONFIG_HOME/warden/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCleanupCmd())
	cmd.AddCommand(NewMailCmd())

	return cmd
}

// loadConfig layers defaults, the config file, the environment and the
// command's changed flags. Without --config, $XDG_CONFIG_HOME/warden/config.yaml
// is used when present.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	return config.Load(path, cmd.Flags())
}
