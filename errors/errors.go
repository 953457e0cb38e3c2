// Package errors provides error handling for omekalink.
//
// This package re-exports github.com/cockroachdb/errors so every package
// gets stack traces, wrapping, hints and details from a single import, and
// defines the sentinel errors the Omeka S client and the link pipeline
// classify remote failures into.
//
// Usage:
//
//	if err := client.ReplaceItem(ctx, id, item); err != nil {
//	    return errors.Wrapf(err, "failed to update item %d", id)
//	}
//
//	if errors.Is(err, errors.ErrNotFound) {
//	    // item set or item does not exist on the remote instance
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"net/http"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark

	CombineErrors = crdb.CombineErrors
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors shared by the remote client and the pipeline.
// Wrap or Mark them to add context while keeping errors.Is working.
var (
	// ErrNotFound indicates the requested item, item set or media does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the remote rejected the request payload (400/422)
	ErrInvalidRequest = New("invalid request")

	// ErrUnauthorized indicates missing or rejected API credentials (401)
	ErrUnauthorized = New("unauthorized")

	// ErrForbidden indicates the credentials lack permission for the resource (403)
	ErrForbidden = New("forbidden")

	// ErrServiceUnavailable indicates the remote failed on its side (5xx)
	ErrServiceUnavailable = New("service unavailable")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")

	// ErrConflict indicates the remote refused a write because of a conflict (409)
	ErrConflict = New("resource conflict")
)

// ForStatus returns the sentinel matching an HTTP status code, or nil for
// success and status codes that have no dedicated sentinel.
func ForStatus(code int) error {
	switch {
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return ErrInvalidRequest
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusConflict:
		return ErrConflict
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ErrTimeout
	case code >= 500:
		return ErrServiceUnavailable
	}
	return nil
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsUnauthorizedError checks if an error is or wraps ErrUnauthorized or ErrForbidden
func IsUnauthorizedError(err error) bool {
	return err != nil && IsAny(err, ErrUnauthorized, ErrForbidden)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}
