// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/store"
)

const accountColumns = `id, username, email, password_hash, is_verified,
	failed_logins, locked_until, last_login_at, created_at, updated_at`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db store.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db store.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (
			id, username, email, password_hash, is_verified,
			failed_logins, locked_until, last_login_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		account.ID.String(),
		account.Username,
		account.Email,
		account.PasswordHash,
		account.Verified,
		account.FailedLogins,
		account.LockedUntil,
		account.LastLoginAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if dup := r.duplicateError(ctx, err, account); dup != nil {
			return dup
		}
		return wrapDBError(err, "ACCOUNT_CREATE_FAILED", "insert account")
	}
	return nil
}

// duplicateError maps a unique violation on accounts to a conflict error, or
// returns nil if err is not one. Postgres reports only the first violated
// index, and the username index precedes the email index, so a username
// violation is re-checked against the email.
func (r *AccountRepository) duplicateError(ctx context.Context, err error, account *auth.Account) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	switch constraint {
	case constraintEmail:
		return auth.NewDuplicateError(auth.CodeDuplicateEmail, "email", account.Email)
	case constraintUsername:
		var emailTaken bool
		if qErr := r.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM accounts WHERE LOWER(email) = LOWER($1))`,
			account.Email,
		).Scan(&emailTaken); qErr != nil {
			return wrapDBError(qErr, "ACCOUNT_CREATE_FAILED", "check duplicate email")
		}
		if emailTaken {
			return auth.NewDuplicateError(auth.CodeDuplicateEmail, "email", account.Email)
		}
		return auth.NewDuplicateError(auth.CodeDuplicateUsername, "username", account.Username)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.NewNotFoundError("id", id.String())
	}
	if err != nil {
		return nil, wrapDBError(err, "ACCOUNT_GET_FAILED", "get account by id")
	}
	return account, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = LOWER($1)`, email)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.NewNotFoundError("email", email)
	}
	if err != nil {
		return nil, wrapDBError(err, "ACCOUNT_GET_FAILED", "get account by email")
	}
	return account, nil
}

// RecordFailedLogin applies the lockout policy in a single UPDATE so
// concurrent failures are all counted. The CASE arms mirror
// auth.LockoutPolicy.ApplyFailure.
func (r *AccountRepository) RecordFailedLogin(ctx context.Context, id ulid.ULID, policy auth.LockoutPolicy, now time.Time) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE accounts SET
			failed_logins = CASE
				WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN 1
				ELSE failed_logins + 1
			END,
			locked_until = CASE
				WHEN locked_until IS NOT NULL AND locked_until > $2 THEN locked_until
				WHEN (CASE
					WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN 1
					ELSE failed_logins + 1
				END) >= $3 THEN $4::timestamptz
				ELSE NULL
			END,
			updated_at = $2
		WHERE id = $1
		RETURNING `+accountColumns,
		id.String(), now, policy.Threshold, now.Add(policy.Window),
	)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.NewNotFoundError("id", id.String())
	}
	if err != nil {
		return nil, wrapDBError(err, "ACCOUNT_UPDATE_FAILED", "record failed login")
	}
	return account, nil
}

// RecordSuccessfulLogin clears failures and the lock and stamps the login time.
func (r *AccountRepository) RecordSuccessfulLogin(ctx context.Context, id ulid.ULID, now time.Time) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE accounts SET
			failed_logins = 0,
			locked_until = NULL,
			last_login_at = $2,
			updated_at = $2
		WHERE id = $1
		RETURNING `+accountColumns,
		id.String(), now,
	)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.NewNotFoundError("id", id.String())
	}
	if err != nil {
		return nil, wrapDBError(err, "ACCOUNT_UPDATE_FAILED", "record successful login")
	}
	return account, nil
}

// MarkVerified sets the verified flag if it is not already set.
func (r *AccountRepository) MarkVerified(ctx context.Context, id ulid.ULID, now time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts SET is_verified = TRUE, updated_at = $2
		WHERE id = $1 AND NOT is_verified
	`, id.String(), now)
	if err != nil {
		return wrapDBError(err, "ACCOUNT_UPDATE_FAILED", "mark verified")
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	// Nothing changed: either the account is gone or it was already verified.
	var verified bool
	err = r.db.QueryRow(ctx, `SELECT is_verified FROM accounts WHERE id = $1`, id.String()).Scan(&verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.NewNotFoundError("id", id.String())
	}
	if err != nil {
		return wrapDBError(err, "ACCOUNT_GET_FAILED", "check verified")
	}
	return oops.Code(auth.CodeAlreadyVerified).
		With("account_id", id.String()).
		Errorf("email address is already verified")
}

// ReplacePassword stores a new hash and clears failures and the lock.
func (r *AccountRepository) ReplacePassword(ctx context.Context, id ulid.ULID, passwordHash string, now time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts SET
			password_hash = $2,
			failed_logins = 0,
			locked_until = NULL,
			updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, now)
	if err != nil {
		return wrapDBError(err, "ACCOUNT_UPDATE_FAILED", "replace password")
	}
	if result.RowsAffected() == 0 {
		return auth.NewNotFoundError("id", id.String())
	}
	return nil
}

// UpgradePasswordHash replaces the hash without touching lockout state.
func (r *AccountRepository) UpgradePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.db.Exec(ctx, `UPDATE accounts SET password_hash = $2 WHERE id = $1`, id.String(), passwordHash)
	if err != nil {
		return wrapDBError(err, "ACCOUNT_UPDATE_FAILED", "upgrade password hash")
	}
	if result.RowsAffected() == 0 {
		return auth.NewNotFoundError("id", id.String())
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr   string
		account auth.Account
	)
	err := row.Scan(
		&idStr,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.Verified,
		&account.FailedLogins,
		&account.LockedUntil,
		&account.LastLoginAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}
	account.ID = id
	return &account, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
