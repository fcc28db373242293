// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/memory"
	"github.com/holomush/warden/internal/auth/postgres"
	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/mail"
	"github.com/holomush/warden/internal/observability"
	"github.com/holomush/warden/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// BackendFactory opens the account and token repositories.
	// Default: openBackend
	BackendFactory func(ctx context.Context, cfg config.DatabaseConfig) (*Backend, error)

	// MigratorFactory creates a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (AutoMigrator, error)

	// SenderFactory creates the mail transport.
	// Default: mail.NewSender
	SenderFactory func(ctx context.Context, cfg mail.Config, logger *slog.Logger) (mail.Sender, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// SignalNotifier delivers shutdown signals.
	// Default: signal.Notify for SIGINT and SIGTERM
	SignalNotifier func() (<-chan os.Signal, func())
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.BackendFactory == nil {
		out.BackendFactory = openBackend
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (AutoMigrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.SenderFactory == nil {
		out.SenderFactory = mail.NewSender
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	if out.SignalNotifier == nil {
		out.SignalNotifier = func() (<-chan os.Signal, func()) {
			ch := make(chan os.Signal, 1)
			signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
			return ch, func() { signal.Stop(ch) }
		}
	}
	return &out
}

// AutoMigrator interface wraps the methods used from store.Migrator.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// Backend is an opened storage driver.
type Backend struct {
	Accounts auth.AccountRepository
	Tokens   auth.TokenRepository

	// Ping answers readiness checks.
	Ping func(ctx context.Context) error

	// Close releases the driver's resources. It may be nil.
	Close func()
}

func (b *Backend) close() {
	if b.Close != nil {
		b.Close()
	}
}

// openBackend opens the storage driver selected by cfg.Driver.
func openBackend(ctx context.Context, cfg config.DatabaseConfig) (*Backend, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		s := memory.NewStore()
		return &Backend{Accounts: s, Tokens: s, Ping: s.Ping}, nil
	case config.StorePostgres:
		pool, err := store.Connect(ctx, cfg.URL, store.PoolConfig{
			MaxConns:        cfg.MaxConns,
			ConnectAttempts: cfg.ConnectAttempts,
			ConnectBackoff:  cfg.ConnectBackoff,
		})
		if err != nil {
			return nil, err
		}
		return &Backend{
			Accounts: postgres.NewAccountRepository(pool),
			Tokens:   postgres.NewTokenRepository(pool),
			Ping:     pool.Ping,
			Close:    pool.Close,
		}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("driver", cfg.Driver).
			Errorf("unknown store driver %q", cfg.Driver)
	}
}
