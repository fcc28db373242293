// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
)

// Unique constraint names from the accounts migration.
const (
	constraintEmail    = "accounts_email_key"
	constraintUsername = "accounts_username_key"
)

// unavailable reports whether err means the database could not be reached in time.
func unavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// wrapDBError codes a driver error. Unreachable databases become
// STORE_UNAVAILABLE; everything else gets the caller's failure code.
func wrapDBError(err error, code, operation string) error {
	if unavailable(err) {
		return oops.Code(auth.CodeStoreUnavailable).
			With("operation", operation).
			Wrap(err)
	}
	return oops.Code(code).
		With("operation", operation).
		Wrap(err)
}

// uniqueViolation returns the violated constraint name if err is a unique
// violation.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return "", false
	}
	return pgErr.ConstraintName, true
}
