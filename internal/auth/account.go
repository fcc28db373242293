// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MaxEmailLength    = 100
	MinPasswordLength = 8
)

// usernameRegex matches letters, numbers, and underscores only.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Account is a registered user and its verification and lockout state.
type Account struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	Verified     bool
	FailedLogins int
	LockedUntil  *time.Time
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount creates an unverified Account with a validated username and
// normalized email. passwordHash must already be hashed.
func NewAccount(username, email, passwordHash string) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, oops.Code(CodeEmptyPassword).Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &Account{
		ID:           ulid.Make(),
		Username:     username,
		Email:        normalized,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsLocked returns true if the account is locked at now.
func (a *Account) IsLocked(now time.Time) bool {
	return IsLockedOut(a.LockedUntil, now)
}

// View is the public projection of an Account returned to clients.
type View struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	IsVerified  bool       `json:"isVerified"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`
}

// View returns the public projection of the account.
func (a *Account) View() View {
	return View{
		ID:          a.ID.String(),
		Username:    a.Username,
		Email:       a.Email,
		IsVerified:  a.Verified,
		LastLoginAt: a.LastLoginAt,
	}
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code(CodeInvalidUsername).Errorf("username is required")
	}
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return oops.Code(CodeInvalidUsername).
			With("min", MinUsernameLength).
			With("max", MaxUsernameLength).
			Errorf("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code(CodeInvalidUsername).
			Errorf("username can only contain letters, numbers, and underscores")
	}
	return nil
}

// NormalizeEmail validates an email address and returns it trimmed and lowercased.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", oops.Code(CodeInvalidEmail).Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return "", oops.Code(CodeInvalidEmail).
			With("max", MaxEmailLength).
			Errorf("email must be less than %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	// Reject display-name forms such as "Bob <bob@x.com>"; only a bare address is accepted.
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", oops.Code(CodeInvalidEmail).Errorf("please provide a valid email address")
	}
	return email, nil
}

// ValidatePassword checks password strength for registration and reset.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code(CodeWeakPassword).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters long", MinPasswordLength)
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return oops.Code(CodeWeakPassword).
			Errorf("password must contain at least one uppercase letter, one lowercase letter, and one number")
	}
	return nil
}

// AccountRepository manages account persistence. Implementations make every
// read-modify-write on a single account atomic.
type AccountRepository interface {
	// Create stores a new account. Returns a CodeDuplicateEmail or
	// CodeDuplicateUsername error when either is taken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// RecordFailedLogin atomically applies policy.ApplyFailure and returns the updated account.
	RecordFailedLogin(ctx context.Context, id ulid.ULID, policy LockoutPolicy, now time.Time) (*Account, error)

	// RecordSuccessfulLogin clears failures and the lock and sets the last login time.
	RecordSuccessfulLogin(ctx context.Context, id ulid.ULID, now time.Time) (*Account, error)

	// MarkVerified sets the verified flag. Returns a CodeAlreadyVerified error
	// if the account was already verified.
	MarkVerified(ctx context.Context, id ulid.ULID, now time.Time) error

	// ReplacePassword stores a new hash and clears failures and the lock.
	ReplacePassword(ctx context.Context, id ulid.ULID, passwordHash string, now time.Time) error

	// UpgradePasswordHash replaces the hash without touching lockout state.
	UpgradePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error
}
