// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/holomush/warden/internal/auth"
)

// AuthService is the subset of *auth.Service the handlers use.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*auth.Account, error)
	VerifyEmail(ctx context.Context, tokenValue string) error
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, tokenValue, newPassword string) error
	VerifySession(ctx context.Context, token string) (*auth.Account, error)
}

var _ AuthService = (*auth.Service)(nil)

// Handler serves the auth endpoints.
type Handler struct {
	service AuthService
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(service AuthService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if fe := req.validate(); len(fe) > 0 {
		writeValidation(w, fe)
		return
	}

	account, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err, failure{message: "Registration failed. Please try again."})
		return
	}

	view := account.View()
	writeJSON(w, http.StatusCreated, Envelope{
		Success: true,
		Message: "Registration successful! Please check your email for verification instructions.",
		User:    &view,
	})
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if fe := req.validate(); len(fe) > 0 {
		writeValidation(w, fe)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err, failure{message: "Login failed. Please try again."})
		return
	}

	view := result.Account.View()
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "Login successful",
		Token:   result.Token,
		User:    &view,
	})
}

// VerifyEmail handles GET /verify/{token}.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		writeError(w, r, h.logger, err, failure{
			message: "Email verification failed. Please try again.",
			overrides: map[string]string{
				auth.CodeInvalidOrExpiredToken: "Invalid or expired verification token",
			},
		})
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "Email verification successful! You can now log in to your account.",
	})
}

// ResendVerification handles POST /resend-verification.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if fe := req.validate(); len(fe) > 0 {
		writeValidation(w, fe)
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		writeError(w, r, h.logger, err, failure{message: "Failed to resend verification email"})
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "Verification email sent successfully",
	})
}

// ForgotPassword handles POST /forgot-password. The response does not reveal
// whether the email belongs to an account.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if fe := req.validate(); len(fe) > 0 {
		writeValidation(w, fe)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, h.logger, err, failure{message: "Password reset request failed. Please try again."})
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "If an account with that email exists, we've sent password reset instructions.",
	})
}

// ResetPassword handles POST /reset-password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if fe := req.validate(); len(fe) > 0 {
		writeValidation(w, fe)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, h.logger, err, failure{
			message: "Password reset failed. Please try again.",
			overrides: map[string]string{
				auth.CodeInvalidOrExpiredToken: "Invalid or expired reset token",
			},
		})
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "Password reset successful! You can now log in with your new password.",
	})
}

// VerifySession handles GET /verify behind RequireSession.
func (h *Handler) VerifySession(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Envelope{Message: "Access token required", Code: CodeAccessTokenRequired})
		return
	}
	view := account.View()
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "Token is valid",
		User:    &view,
	})
}
