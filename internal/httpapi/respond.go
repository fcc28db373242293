// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/pkg/errutil"
)

// FieldError names one offending request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Envelope is the body of every response.
type Envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Code    string       `json:"code,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Token   string       `json:"token,omitempty"`
	User    *auth.View   `json:"user,omitempty"`
}

const (
	msgValidationFailed = "Validation failed"
	msgUnavailable      = "Service temporarily unavailable. Please try again."
	msgInternal         = "Internal server error"
)

// errorMessages are the client-facing messages for domain error codes.
var errorMessages = map[string]string{
	auth.CodeDuplicateEmail:        "Email already registered",
	auth.CodeDuplicateUsername:     "Username already taken",
	auth.CodeInvalidCredentials:    "Invalid email or password",
	auth.CodeAccountLocked:         "Account is temporarily locked due to too many failed login attempts. Please try again later.",
	auth.CodeEmailNotVerified:      "Please verify your email address before logging in.",
	auth.CodeInvalidOrExpiredToken: "Invalid or expired token",
	auth.CodeAccountNotFound:       "User not found",
	auth.CodeAlreadyVerified:       "Email address is already verified",
}

// validationFields maps validation codes to the request field they concern.
var validationFields = map[string]string{
	auth.CodeInvalidUsername: "username",
	auth.CodeInvalidEmail:    "email",
	auth.CodeWeakPassword:    "password",
	auth.CodeEmptyPassword:   "password",
}

// failure customizes error rendering for one route.
type failure struct {
	// message is returned for internal errors.
	message string
	// overrides replaces errorMessages entries.
	overrides map[string]string
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // client went away
}

func writeValidation(w http.ResponseWriter, errs []FieldError) {
	writeJSON(w, http.StatusBadRequest, Envelope{
		Message: msgValidationFailed,
		Errors:  errs,
	})
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch auth.KindOf(err) {
	case auth.KindValidation, auth.KindConflict, auth.KindLogic:
		return http.StatusBadRequest
	case auth.KindAuthorization:
		if auth.Code(err) == auth.CodeAccountLocked {
			return http.StatusLocked
		}
		return http.StatusUnauthorized
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Internal and transient errors are logged; their
// details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, f failure) {
	status := statusFor(err)
	code := auth.Code(err)

	switch auth.KindOf(err) {
	case auth.KindValidation:
		field := validationFields[code]
		writeValidation(w, []FieldError{{Field: field, Message: capitalize(err.Error())}})
		return
	case auth.KindTransient:
		errutil.Log(r.Context(), logger, slog.LevelWarn, "request failed: store unavailable", err)
		writeJSON(w, status, Envelope{Message: msgUnavailable})
		return
	case auth.KindInternal:
		errutil.LogError(r.Context(), logger, "request failed", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		msg := f.message
		if msg == "" {
			msg = msgInternal
		}
		writeJSON(w, status, Envelope{Message: msg})
		return
	}

	msg, ok := f.overrides[code]
	if !ok {
		msg = errorMessages[code]
	}
	if msg == "" {
		msg = capitalize(err.Error())
	}
	writeJSON(w, status, Envelope{Message: msg})
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
