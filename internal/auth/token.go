// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultTokenTTL is how long an ephemeral token stays redeemable.
const DefaultTokenTTL = 24 * time.Hour

// Purpose scopes an ephemeral token to a single flow.
type Purpose string

// Token purposes.
const (
	PurposeEmailVerification Purpose = "EMAIL_VERIFICATION"
	PurposePasswordReset     Purpose = "PASSWORD_RESET"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeEmailVerification || p == PurposePasswordReset
}

// EphemeralToken is a single-use, expiring credential for email
// verification or password reset. Only the hash of the value is persisted.
type EphemeralToken struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	Purpose   Purpose
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the token has expired at now.
func (t *EphemeralToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsRedeemable returns true if the token is unused and unexpired at now.
func (t *EphemeralToken) IsRedeemable(now time.Time) bool {
	return !t.Used && !t.IsExpired(now)
}

// GenerateTokenValue creates a token from 128 random bits rendered in UUID
// form, and its hash. The plaintext is sent to the user; the hash is stored.
func GenerateTokenValue() (value, hash string, err error) {
	var raw [16]byte
	if _, err = rand.Read(raw[:]); err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").Wrap(err)
	}
	value = uuid.UUID(raw).String()
	return value, HashTokenValue(value), nil
}

// HashTokenValue computes the SHA256 hash of a token value.
func HashTokenValue(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}

// IsTokenShaped reports whether value has the canonical token shape.
func IsTokenShaped(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(value)
	return err == nil
}

// TokenRepository manages ephemeral token persistence.
type TokenRepository interface {
	// Replace atomically deletes every token for (token.AccountID, token.Purpose)
	// and stores token.
	Replace(ctx context.Context, token *EphemeralToken) error

	// Redeem atomically marks the token with tokenHash used if it is unused,
	// unexpired and of the given purpose, and returns it. Otherwise it returns
	// CodeTokenNotFound, CodeTokenWrongPurpose, CodeTokenAlreadyUsed or
	// CodeTokenExpired and leaves the token untouched.
	Redeem(ctx context.Context, tokenHash string, purpose Purpose, now time.Time) (*EphemeralToken, error)

	// DeleteByAccount removes all tokens of a purpose for an account.
	DeleteByAccount(ctx context.Context, accountID ulid.ULID, purpose Purpose) error

	// DeleteExpired removes tokens that are used or expired at now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ClassifyUnredeemable returns the redemption error for a token that failed
// the atomic redeem. Purpose is checked first so a token never reveals its
// state to a caller presenting it for the wrong flow.
func ClassifyUnredeemable(token *EphemeralToken, purpose Purpose, now time.Time) error {
	switch {
	case token == nil:
		return oops.Code(CodeTokenNotFound).Errorf("token not found")
	case token.Purpose != purpose:
		return oops.Code(CodeTokenWrongPurpose).
			With("purpose", string(purpose)).
			Errorf("token purpose mismatch")
	case token.Used:
		return oops.Code(CodeTokenAlreadyUsed).Errorf("token already used")
	case token.IsExpired(now):
		return oops.Code(CodeTokenExpired).
			With("expired_at", token.ExpiresAt).
			Errorf("token has expired")
	default:
		return oops.Code(CodeTokenNotFound).Errorf("token not found")
	}
}
