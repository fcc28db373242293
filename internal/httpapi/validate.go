// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
)

const msgInvalidBody = "Request body must be a single JSON object"

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// decodeJSON reads exactly one JSON object into dst. Unknown fields and
// trailing data are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return oops.Code("REQUEST_TOO_LARGE").With("limit", tooLarge.Limit).Wrap(err)
		}
		return oops.Code("REQUEST_MALFORMED").Wrap(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return oops.Code("REQUEST_MALFORMED").Errorf("unexpected data after JSON object")
	}
	return nil
}

// writeDecodeError answers a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if auth.Code(err) == "REQUEST_TOO_LARGE" {
		status = http.StatusRequestEntityTooLarge
	}
	writeJSON(w, status, Envelope{Message: msgInvalidBody})
}

// fieldErrors accumulates validation failures in request order.
type fieldErrors []FieldError

func (fe *fieldErrors) check(field string, err error) {
	if err != nil {
		*fe = append(*fe, FieldError{Field: field, Message: capitalize(err.Error())})
	}
}

func (fe *fieldErrors) add(field, message string) {
	*fe = append(*fe, FieldError{Field: field, Message: message})
}

func checkEmail(fe *fieldErrors, email string) string {
	normalized, err := auth.NormalizeEmail(email)
	fe.check("email", err)
	return normalized
}

func (req *registerRequest) validate() fieldErrors {
	var fe fieldErrors
	req.Username = strings.TrimSpace(req.Username)
	fe.check("username", auth.ValidateUsername(req.Username))
	req.Email = checkEmail(&fe, req.Email)
	fe.check("password", auth.ValidatePassword(req.Password))
	return fe
}

func (req *loginRequest) validate() fieldErrors {
	var fe fieldErrors
	req.Email = checkEmail(&fe, req.Email)
	if req.Password == "" {
		fe.add("password", "Password is required")
	}
	return fe
}

func (req *emailRequest) validate() fieldErrors {
	var fe fieldErrors
	if strings.TrimSpace(req.Email) == "" {
		fe.add("email", "Email is required")
		return fe
	}
	req.Email = checkEmail(&fe, req.Email)
	return fe
}

func (req *resetPasswordRequest) validate() fieldErrors {
	var fe fieldErrors
	switch {
	case req.Token == "":
		fe.add("token", "Reset token is required")
	case !auth.IsTokenShaped(req.Token):
		fe.add("token", "Invalid reset token format")
	}
	fe.check("newPassword", auth.ValidatePassword(req.NewPassword))
	return fe
}
