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

const tokenColumns = `id, account_id, purpose, token_hash, expires_at, used, used_at, created_at`

// TokenRepository implements auth.TokenRepository using PostgreSQL.
type TokenRepository struct {
	db store.DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db store.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Replace deletes the account's tokens for the purpose and inserts token in
// one transaction.
func (r *TokenRepository) Replace(ctx context.Context, token *auth.EphemeralToken) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM ephemeral_tokens WHERE account_id = $1 AND purpose = $2
		`, token.AccountID.String(), string(token.Purpose)); err != nil {
			return err //nolint:wrapcheck // wrapped below
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO ephemeral_tokens (`+tokenColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			token.ID.String(),
			token.AccountID.String(),
			string(token.Purpose),
			token.TokenHash,
			token.ExpiresAt,
			token.Used,
			token.UsedAt,
			token.CreatedAt,
		)
		return err //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		return wrapDBError(err, "TOKEN_REPLACE_FAILED", "replace token")
	}
	return nil
}

// Redeem marks the token used in a single conditional UPDATE. When no row
// qualifies, the token is read back only to classify the failure.
func (r *TokenRepository) Redeem(ctx context.Context, tokenHash string, purpose auth.Purpose, now time.Time) (*auth.EphemeralToken, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE ephemeral_tokens SET used = TRUE, used_at = $3
		WHERE token_hash = $1
		  AND purpose = $2
		  AND NOT used
		  AND expires_at > $3
		RETURNING `+tokenColumns,
		tokenHash, string(purpose), now,
	)

	token, err := scanToken(row)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapDBError(err, "TOKEN_REDEEM_FAILED", "redeem token")
	}

	row = r.db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM ephemeral_tokens WHERE token_hash = $1`, tokenHash)
	existing, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ClassifyUnredeemable(nil, purpose, now)
	}
	if err != nil {
		return nil, wrapDBError(err, "TOKEN_REDEEM_FAILED", "classify token")
	}
	return nil, auth.ClassifyUnredeemable(existing, purpose, now)
}

// DeleteByAccount removes all tokens of a purpose for an account.
func (r *TokenRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID, purpose auth.Purpose) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM ephemeral_tokens WHERE account_id = $1 AND purpose = $2
	`, accountID.String(), string(purpose))
	if err != nil {
		return wrapDBError(err, "TOKEN_DELETE_FAILED", "delete account tokens")
	}
	return nil
}

// DeleteExpired removes used and expired tokens.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM ephemeral_tokens WHERE used OR expires_at <= $1
	`, now)
	if err != nil {
		return 0, wrapDBError(err, "TOKEN_DELETE_FAILED", "delete expired tokens")
	}
	return result.RowsAffected(), nil
}

// scanToken scans a single row into an EphemeralToken.
// Callers are responsible for handling pgx.ErrNoRows.
func scanToken(row pgx.Row) (*auth.EphemeralToken, error) {
	var (
		idStr, accountIDStr, purpose string
		token                        auth.EphemeralToken
	)
	err := row.Scan(
		&idStr,
		&accountIDStr,
		&purpose,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.Used,
		&token.UsedAt,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}

	if token.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("TOKEN_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if token.AccountID, err = ulid.Parse(accountIDStr); err != nil {
		return nil, oops.Code("TOKEN_INVALID_ACCOUNT_ID").With("account_id", accountIDStr).Wrap(err)
	}
	token.Purpose = auth.Purpose(purpose)
	return &token, nil
}

// Compile-time interface check.
var _ auth.TokenRepository = (*TokenRepository)(nil)
