// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DB is the query surface shared by *pgxpool.Pool and pgxmock pools.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

var _ DB = (*pgxpool.Pool)(nil)

// PoolConfig tunes Connect.
type PoolConfig struct {
	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32

	// ConnectAttempts is how many times the initial ping is tried.
	ConnectAttempts uint64

	// ConnectBackoff is the base delay between ping attempts.
	ConnectBackoff time.Duration
}

// DefaultPoolConfig returns the settings used by the serve command.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        10,
		ConnectAttempts: 5,
		ConnectBackoff:  500 * time.Millisecond,
	}
}

// Connect opens a pool for databaseURL and waits until the database answers a ping.
func Connect(ctx context.Context, databaseURL string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := pingWithRetry(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func pingWithRetry(ctx context.Context, db pinger, cfg PoolConfig) error {
	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}
	backoff := cfg.ConnectBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	b := retry.WithMaxRetries(attempts-1, retry.NewExponential(backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempts).
			Wrap(err)
	}
	return nil
}
