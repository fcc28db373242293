// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides account authentication and credential lifecycle for Warden.
//
// # Domain Types
//
// Domain types (Account, EphemeralToken) should be created through the
// stores rather than by direct struct initialization:
//   - AccountStore.Create - validates, normalizes and hashes before persisting
//   - TokenStore.Issue - generates a token value and persists only its hash
//
// Repository implementations receive pre-validated types from the stores.
//
// # Stores
//
// AccountStore and TokenStore apply domain rules (lockout policy, token
// purpose and expiry, store deadlines) on top of the AccountRepository and
// TokenRepository interfaces. Every repository call is bounded by a timeout;
// a call that runs out of time surfaces as STORE_UNAVAILABLE.
//
// # Services
//
// Service coordinates the user-facing flows: registration, email
// verification, login, password reset and session verification. Session
// tokens are stateless and issued by SessionIssuer.
//
// # Errors
//
// Errors carry an oops code. KindOf maps a code to a Kind so presentation
// layers can switch on a closed set of categories.
package auth
