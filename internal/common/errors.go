// Package common defines shared sentinel errors and small helpers used across
// the Waffle client. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Lookup errors.
	ErrNotFound = errors.New("not found")

	// Store errors (network or API failure on read or write).
	ErrStoreUnavailable = errors.New("store unavailable")

	// Voice attachment errors (missing or unfetchable fragment).
	ErrIncompleteAssembly = errors.New("incomplete assembly")

	// Record errors. Malformed records are skipped by the repository and
	// only surface through logs and counters.
	ErrMalformedRecord = errors.New("malformed record")

	// Bootstrap errors.
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrMalformedBootstrap   = errors.New("malformed bootstrap blob")

	// Input errors.
	ErrValidation    = errors.New("validation error")
	ErrAlreadyPosted = errors.New("already posted this week")
)
