package errors

import (
	"errors"
	"fmt"
)

// Standard errors
var (
	// ErrAuthentication is returned when an encrypted blob fails tag
	// verification, either because the blob was tampered with or because
	// the key differs from the one that produced it.
	ErrAuthentication = errors.New("authentication failed: tag mismatch or wrong key")

	// ErrAccessDenied is returned when a gated operation is attempted
	// while the access gate is still locked.
	ErrAccessDenied = errors.New("access denied: gate is locked")

	// ErrAccessSuspended is returned once the lockout threshold has been
	// reached. Suspension is terminal for the lifetime of the process.
	ErrAccessSuspended = errors.New("access suspended: lockout threshold reached")

	// ErrHostAttribute is returned when a host attribute needed for
	// fingerprinting cannot be read.
	ErrHostAttribute = errors.New("host attribute unreadable")

	// ErrStoreConsistency is returned when a record and its lexical index
	// entry disagree. If this ever surfaces, atomicity was violated.
	ErrStoreConsistency = errors.New("memory store consistency violation")

	// ErrStoreUnavailable is returned when the persistence backend is unavailable
	ErrStoreUnavailable = errors.New("memory store unavailable")

	// ErrInvalidInput is returned when the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a requested record is not found
	ErrNotFound = errors.New("record not found")
)

// Wrap wraps an error with additional context
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience function that wraps errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target, and if so, sets
// target to that error value and returns true. Otherwise, it returns false.
// This is a convenience function that wraps errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
