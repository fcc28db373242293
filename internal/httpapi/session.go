// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/holomush/warden/internal/auth"
)

// Bearer failure codes returned in the envelope's code field.
const (
	CodeAccessTokenRequired = "AccessTokenRequired"
	CodeInvalidToken        = "InvalidToken"
	CodeTokenExpired        = "TokenExpired"
	CodeUserNotFound        = "UserNotFound"
	CodeEmailNotVerified    = "EmailNotVerified"
	CodeAccountLocked       = "AccountLocked"
)

type accountKey struct{}

// WithAccount returns a context carrying the authenticated account.
func WithAccount(ctx context.Context, account *auth.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// AccountFromContext returns the account set by RequireSession.
func AccountFromContext(ctx context.Context) (*auth.Account, bool) {
	account, ok := ctx.Value(accountKey{}).(*auth.Account)
	return account, ok && account != nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireSession rejects requests without a valid session token for a
// verified, unlocked account.
func RequireSession(service AuthService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, Envelope{
					Message: "Access token required",
					Code:    CodeAccessTokenRequired,
				})
				return
			}

			account, err := service.VerifySession(r.Context(), token)
			if err != nil {
				writeSessionError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}

func writeSessionError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch auth.Code(err) {
	case auth.CodeSessionExpired:
		writeJSON(w, http.StatusUnauthorized, Envelope{Message: "Token expired", Code: CodeTokenExpired})
	case auth.CodeSessionMalformed, auth.CodeSessionWrongAudience, auth.CodeSessionWrongIssuer:
		writeJSON(w, http.StatusUnauthorized, Envelope{Message: "Invalid token", Code: CodeInvalidToken})
	case auth.CodeAccountNotFound:
		writeJSON(w, http.StatusUnauthorized, Envelope{Message: "User not found", Code: CodeUserNotFound})
	case auth.CodeEmailNotVerified:
		writeJSON(w, http.StatusUnauthorized, Envelope{
			Message: "Please verify your email address",
			Code:    CodeEmailNotVerified,
		})
	case auth.CodeAccountLocked:
		writeJSON(w, http.StatusLocked, Envelope{
			Message: "Account is temporarily locked due to too many failed login attempts",
			Code:    CodeAccountLocked,
		})
	default:
		writeError(w, r, logger, err, failure{message: "Token verification failed"})
	}
}
