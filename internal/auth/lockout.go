// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"
)

// Default lockout configuration.
const (
	// DefaultLockoutThreshold is the number of consecutive failures that triggers a lockout.
	DefaultLockoutThreshold = 5

	// DefaultLockoutWindow is the time an account stays locked.
	DefaultLockoutWindow = 30 * time.Minute
)

// LockoutPolicy decides when repeated login failures lock an account.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
}

// DefaultLockoutPolicy returns the policy used when none is configured.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold, Window: DefaultLockoutWindow}
}

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && now.Before(*lockedUntil)
}

// ApplyFailure returns the failure count and lock after one more failed attempt.
// A lock that has already expired restarts the count at 1. A new lock is only
// set when the threshold is reached and the account is not currently locked,
// so concurrent failures cannot extend an existing lock.
func (p LockoutPolicy) ApplyFailure(failures int, lockedUntil *time.Time, now time.Time) (int, *time.Time) {
	if lockedUntil != nil && !now.Before(*lockedUntil) {
		failures = 0
		lockedUntil = nil
	}

	failures++
	if failures >= p.Threshold && lockedUntil == nil {
		until := now.Add(p.Window)
		lockedUntil = &until
	}
	return failures, lockedUntil
}

// LockoutRemaining returns how long the account stays locked, or zero.
func LockoutRemaining(lockedUntil *time.Time, now time.Time) time.Duration {
	if !IsLockedOut(lockedUntil, now) {
		return 0
	}
	return lockedUntil.Sub(now)
}
