package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by the registry,
// sandbox runner and coach to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// Loop errors
var (
	ErrLoopNotFound = errors.New("loop not found")
)

// Sandbox errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrSandboxUnavailable = errors.New("sandbox infrastructure unavailable")
)

// Coaching errors
var (
	ErrBudgetStateNotFound = errors.New("budget state not found")
	ErrRevealNotAllowed    = errors.New("hint reveal not allowed")
)

// General errors
var (
	ErrNotFound      = errors.New("not found")
	ErrInternalError = errors.New("internal error")
)
