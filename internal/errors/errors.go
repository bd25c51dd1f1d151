// Package errors consolidates error definitions for the lagmon daemon.
//
// This package provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - HTTP status mapping for the query API
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Availability errors. These mark transient unavailability of a
	// collaborator; callers surface them as service-level failures
	// instead of silently returning empty results.
	ErrStoreUnavailable      = errors.New("event store unavailable")
	ErrAggregatorUnavailable = errors.New("aggregator unavailable")
	ErrTimeout               = errors.New("operation timed out")

	// Validation errors. Startup-time validation failures are the only
	// class that aborts the whole process.
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidInterval = errors.New("invalid sampling interval")
	ErrInvalidCapacity = errors.New("invalid capacity")
	ErrInvalidLimit    = errors.New("invalid limit")
	ErrMissingField    = errors.New("missing required field")

	// State errors.
	ErrNotRunning     = errors.New("pipeline not running")
	ErrAlreadyRunning = errors.New("pipeline already running")
	ErrBusClosed      = errors.New("event bus closed")
	ErrShuttingDown   = errors.New("shutting down")

	// Data errors. ErrNoData means the query matched nothing; it is
	// distinct from unavailability and maps to 404, not 503.
	ErrNoData = errors.New("no data")
)

// ============================================================================
// Category checks
// ============================================================================

// IsUnavailable returns true if the error marks a transiently unavailable
// collaborator.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrAggregatorUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsValidation returns true for validation errors.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrMissingField)
}

// IsState returns true for lifecycle state errors.
func IsState(err error) bool {
	return errors.Is(err, ErrNotRunning) ||
		errors.Is(err, ErrAlreadyRunning) ||
		errors.Is(err, ErrBusClosed) ||
		errors.Is(err, ErrShuttingDown)
}

// ============================================================================
// HTTP mapping
// ============================================================================

// HTTPStatus maps a service error to an HTTP status code for the query API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoData):
		return http.StatusNotFound
	case IsUnavailable(err), IsState(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// Wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
// Returns nil if err is nil.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// Re-exported stdlib helpers so callers only import this package.

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// Join wraps the given errors into a single error.
func Join(errs ...error) error { return errors.Join(errs...) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }
