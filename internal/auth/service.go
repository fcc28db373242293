// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyPasswordHash is used when an account doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login outcomes reported to the Observer.
const (
	OutcomeSuccess            = "success"
	OutcomeUnknownAccount     = "unknown_account"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeUnverified         = "unverified"
	OutcomeError              = "error"
)

// SessionTokens issues and verifies session tokens.
type SessionTokens interface {
	Issue(accountID ulid.ULID) (string, time.Time, error)
	Verify(token string) (ulid.ULID, error)
}

// Notifier delivers account emails. Implementations must not block the
// caller on delivery; failures are theirs to log.
type Notifier interface {
	SendVerification(ctx context.Context, account *Account, token *IssuedToken)
	SendPasswordReset(ctx context.Context, account *Account, token *IssuedToken)
}

// Observer receives telemetry about service flows.
type Observer interface {
	Registered()
	LoginAttempt(outcome string)
	TokenIssued(purpose Purpose)
	TokenRedeemed(purpose Purpose, outcome string)
}

type nopObserver struct{}

func (nopObserver) Registered()                   {}
func (nopObserver) LoginAttempt(string)           {}
func (nopObserver) TokenIssued(Purpose)           {}
func (nopObserver) TokenRedeemed(Purpose, string) {}

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	Accounts *AccountStore
	Tokens   *TokenStore
	Sessions SessionTokens
	Notifier Notifier

	// Observer and Logger are optional.
	Observer Observer
	Logger   *slog.Logger
}

// Service orchestrates registration, verification, login, password reset,
// and session checks.
type Service struct {
	accounts *AccountStore
	tokens   *TokenStore
	sessions SessionTokens
	notifier Notifier
	observer Observer
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Accounts == nil {
		return nil, oops.Errorf("account store is required")
	}
	if cfg.Tokens == nil {
		return nil, oops.Errorf("token store is required")
	}
	if cfg.Sessions == nil {
		return nil, oops.Errorf("session issuer is required")
	}
	if cfg.Notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		accounts: cfg.Accounts,
		tokens:   cfg.Tokens,
		sessions: cfg.Sessions,
		notifier: cfg.Notifier,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}, nil
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *Account
}

// Register creates an unverified account and sends a verification email.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if _, err := NormalizeEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	account, err := s.accounts.Create(ctx, username, email, password)
	if err != nil {
		return nil, err
	}
	s.observer.Registered()
	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID.String())

	if err := s.sendVerification(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// VerifyEmail redeems a verification token and marks its account verified.
func (s *Service) VerifyEmail(ctx context.Context, tokenValue string) error {
	token, err := s.redeem(ctx, tokenValue, PurposeEmailVerification)
	if err != nil {
		return err
	}

	account, err := s.accounts.FindByID(ctx, token.AccountID)
	if err != nil {
		return err
	}
	if err := s.accounts.MarkVerified(ctx, account); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "email verified", "account_id", account.ID.String())
	return nil
}

// ResendVerification issues a fresh verification token for an unverified account.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, normalizeForLookup(email))
	if err != nil {
		return err
	}
	if account.Verified {
		return oops.Code(CodeAlreadyVerified).
			With("account_id", account.ID.String()).
			Errorf("email address is already verified")
	}
	return s.sendVerification(ctx, account)
}

// Login authenticates by email and password and issues a session token.
// The lock is checked before the password so a locked account reveals nothing
// about password correctness.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	account, err := s.accounts.FindByEmail(ctx, normalizeForLookup(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Keep response time close to the wrong-password path.
			s.accounts.Hasher().Verify(password, dummyPasswordHash)
			s.observer.LoginAttempt(OutcomeUnknownAccount)
			return nil, invalidCredentials()
		}
		s.observer.LoginAttempt(OutcomeError)
		return nil, err
	}

	if s.accounts.IsLocked(account) {
		s.observer.LoginAttempt(OutcomeLocked)
		return nil, accountLocked(account)
	}

	if !s.accounts.Hasher().Verify(password, account.PasswordHash) {
		updated, recErr := s.accounts.RecordFailedLogin(ctx, account)
		// An unavailable store would otherwise let failures go uncounted and
		// bypass the lockout, so it fails the attempt.
		if recErr != nil && KindOf(recErr) == KindTransient {
			s.observer.LoginAttempt(OutcomeError)
			return nil, recErr
		}
		s.observer.LoginAttempt(OutcomeInvalidCredentials)
		if recErr != nil {
			s.logger.WarnContext(ctx, "best-effort failed login recording failed",
				"operation", "record_failure",
				"account_id", account.ID.String(),
				"error", recErr.Error(),
			)
		} else if s.accounts.IsLocked(updated) {
			s.logger.InfoContext(ctx, "account locked after repeated login failures",
				"account_id", account.ID.String(),
				"failed_logins", updated.FailedLogins,
				"locked_until", updated.LockedUntil,
			)
		}
		return nil, invalidCredentials()
	}

	if !account.Verified {
		s.observer.LoginAttempt(OutcomeUnverified)
		return nil, oops.Code(CodeEmailNotVerified).
			With("account_id", account.ID.String()).
			Errorf("please verify your email address before logging in")
	}

	updated, err := s.accounts.RecordSuccessfulLogin(ctx, account)
	if err != nil {
		s.observer.LoginAttempt(OutcomeError)
		return nil, err
	}

	if err := s.accounts.UpgradeHash(ctx, updated, password); err != nil {
		s.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
			"operation", "upgrade_hash",
			"account_id", account.ID.String(),
			"error", err.Error(),
		)
	}

	token, expiresAt, err := s.sessions.Issue(updated.ID)
	if err != nil {
		s.observer.LoginAttempt(OutcomeError)
		return nil, err
	}

	s.observer.LoginAttempt(OutcomeSuccess)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Account: updated}, nil
}

// ForgotPassword issues a password reset token if the email belongs to an
// account. It succeeds whether or not the account exists.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, normalizeForLookup(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := s.tokens.Issue(ctx, account.ID, PurposePasswordReset)
	if err != nil {
		s.logger.WarnContext(ctx, "password reset token issue failed",
			"operation", "issue_reset_token",
			"account_id", account.ID.String(),
			"error", err.Error(),
		)
		return nil
	}
	s.observer.TokenIssued(PurposePasswordReset)
	s.notifier.SendPasswordReset(ctx, account, token)
	return nil
}

// ResetPassword redeems a reset token and replaces its account's password.
func (s *Service) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	token, err := s.redeem(ctx, tokenValue, PurposePasswordReset)
	if err != nil {
		return err
	}

	account, err := s.accounts.FindByID(ctx, token.AccountID)
	if err != nil {
		return err
	}
	if err := s.accounts.ReplacePassword(ctx, account, newPassword); err != nil {
		return err
	}

	// The redeemed token is already spent; this removes any other outstanding reset token.
	if err := s.tokens.Invalidate(ctx, account.ID, PurposePasswordReset); err != nil {
		s.logger.WarnContext(ctx, "best-effort reset token cleanup failed",
			"operation", "invalidate_reset_tokens",
			"account_id", account.ID.String(),
			"error", err.Error(),
		)
	}

	s.logger.InfoContext(ctx, "password reset", "account_id", account.ID.String())
	return nil
}

// VerifySession validates a session token and returns its account.
func (s *Service) VerifySession(ctx context.Context, token string) (*Account, error) {
	accountID, err := s.sessions.Verify(token)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if s.accounts.IsLocked(account) {
		return nil, accountLocked(account)
	}
	if !account.Verified {
		return nil, oops.Code(CodeEmailNotVerified).
			With("account_id", account.ID.String()).
			Errorf("please verify your email address")
	}
	return account, nil
}

func (s *Service) sendVerification(ctx context.Context, account *Account) error {
	token, err := s.tokens.Issue(ctx, account.ID, PurposeEmailVerification)
	if err != nil {
		return err
	}
	s.observer.TokenIssued(PurposeEmailVerification)
	s.notifier.SendVerification(ctx, account, token)
	return nil
}

// redeem consumes a token and collapses every token-state failure into one
// client-visible error.
func (s *Service) redeem(ctx context.Context, value string, purpose Purpose) (*EphemeralToken, error) {
	token, err := s.tokens.Redeem(ctx, value, purpose)
	if err == nil {
		s.observer.TokenRedeemed(purpose, OutcomeSuccess)
		return token, nil
	}

	code := Code(err)
	switch code {
	case CodeTokenNotFound, CodeTokenExpired, CodeTokenAlreadyUsed, CodeTokenWrongPurpose:
		s.observer.TokenRedeemed(purpose, strings.ToLower(strings.TrimPrefix(code, "TOKEN_")))
		s.logger.DebugContext(ctx, "token redemption rejected", "purpose", string(purpose), "cause", code)
		return nil, oops.Code(CodeInvalidOrExpiredToken).
			With("cause", code).
			Errorf("invalid or expired token")
	default:
		s.observer.TokenRedeemed(purpose, OutcomeError)
		return nil, err
	}
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func accountLocked(account *Account) error {
	return oops.Code(CodeAccountLocked).
		With("account_id", account.ID.String()).
		With("locked_until", account.LockedUntil).
		Errorf("account is temporarily locked due to too many failed login attempts")
}

func normalizeForLookup(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
