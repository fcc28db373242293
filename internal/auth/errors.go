// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error codes attached to oops errors by this package and its repositories.
const (
	CodeInvalidUsername = "AUTH_INVALID_USERNAME"
	CodeInvalidEmail    = "AUTH_INVALID_EMAIL"
	CodeWeakPassword    = "AUTH_WEAK_PASSWORD"
	CodeEmptyPassword   = "AUTH_EMPTY_PASSWORD"

	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked         = "AUTH_ACCOUNT_LOCKED"
	CodeEmailNotVerified      = "AUTH_EMAIL_NOT_VERIFIED"
	CodeInvalidOrExpiredToken = "AUTH_INVALID_OR_EXPIRED_TOKEN"

	CodeSessionMalformed     = "SESSION_MALFORMED"
	CodeSessionExpired       = "SESSION_EXPIRED"
	CodeSessionWrongAudience = "SESSION_WRONG_AUDIENCE"
	CodeSessionWrongIssuer   = "SESSION_WRONG_ISSUER"

	CodeDuplicateEmail    = "ACCOUNT_DUPLICATE_EMAIL"
	CodeDuplicateUsername = "ACCOUNT_DUPLICATE_USERNAME"
	CodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	CodeAlreadyVerified   = "ACCOUNT_ALREADY_VERIFIED"

	CodeTokenNotFound     = "TOKEN_NOT_FOUND"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeTokenAlreadyUsed  = "TOKEN_ALREADY_USED"
	CodeTokenWrongPurpose = "TOKEN_WRONG_PURPOSE"

	CodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// Kind classifies an error for presentation. Callers switch on it
// exhaustively; every code above belongs to exactly one kind.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindConflict
	KindNotFound
	KindTransient
	KindLogic
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindLogic:
		return "logic"
	default:
		return "internal"
	}
}

var codeKinds = map[string]Kind{
	CodeInvalidUsername: KindValidation,
	CodeInvalidEmail:    KindValidation,
	CodeWeakPassword:    KindValidation,
	CodeEmptyPassword:   KindValidation,

	CodeInvalidCredentials:    KindAuthorization,
	CodeAccountLocked:         KindAuthorization,
	CodeEmailNotVerified:      KindAuthorization,
	CodeSessionMalformed:      KindAuthorization,
	CodeSessionExpired:        KindAuthorization,
	CodeSessionWrongAudience:  KindAuthorization,
	CodeSessionWrongIssuer:    KindAuthorization,
	CodeInvalidOrExpiredToken: KindLogic,

	CodeDuplicateEmail:    KindConflict,
	CodeDuplicateUsername: KindConflict,
	CodeAccountNotFound:   KindNotFound,
	CodeAlreadyVerified:   KindLogic,

	CodeTokenNotFound:     KindLogic,
	CodeTokenExpired:      KindLogic,
	CodeTokenAlreadyUsed:  KindLogic,
	CodeTokenWrongPurpose: KindLogic,

	CodeStoreUnavailable: KindTransient,
}

// Code returns the oops code carried by err, or "". oops reports the deepest
// code in a chain, so classifying codes are never wrapped by another code.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if code, ok := any(oopsErr.Code()).(string); ok {
		return code
	}
	return ""
}

// KindOf classifies err. Unknown or uncoded errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if kind, ok := codeKinds[Code(err)]; ok {
		return kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindInternal
}

// NewNotFoundError returns a CodeAccountNotFound error that matches ErrNotFound.
func NewNotFoundError(field, value string) error {
	return oops.Code(CodeAccountNotFound).
		With(field, value).
		Wrap(ErrNotFound)
}

// NewDuplicateError returns a conflict error for a taken email or username.
func NewDuplicateError(code, field, value string) error {
	msg := "email already registered"
	if code == CodeDuplicateUsername {
		msg = "username already taken"
	}
	return oops.Code(code).With(field, value).Errorf("%s", msg)
}

// storeUnavailable reports whether err means the backing store did not answer in time.
func storeUnavailable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || Code(err) == CodeStoreUnavailable
}
