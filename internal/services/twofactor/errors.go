// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package twofactor

import "errors"

// User input errors. Always recoverable and reported with a specific reason,
// never logged as system failures.
var (
	ErrAlreadyEnabled   = errors.New("two-factor method already enabled")
	ErrNotEnabled       = errors.New("two-factor authentication not enabled")
	ErrNoPendingSetup   = errors.New("no pending two-factor setup")
	ErrInvalidCode      = errors.New("invalid code")
	ErrMethodNotEnabled = errors.New("method not enabled for code delivery")
	ErrLinkNotPending   = errors.New("no pending relay enrollment to link")
)

// ErrInvariantViolation signals corrupted two-factor state (e.g. two enabled
// methods for one user). Fatal and alerting; never silently repaired.
var ErrInvariantViolation = errors.New("two-factor state invariant violated")
