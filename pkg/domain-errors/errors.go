// Package domainerrors provides coded errors for the blood bank domain.
//
// Services return these so transport layers can map failures to HTTP
// statuses without string matching, and so callers can branch on the
// kind of failure. Stores return pkg/platform/sentinel errors instead;
// services translate at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a distinct, non-overlapping failure kind.
type Code string

const (
	// CodeValidation covers bad input shape or range (age, units, phone).
	CodeValidation Code = "validation_error"
	// CodeBadRequest covers malformed request envelopes (unparseable body, bad id format).
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput covers well-formed values that fail domain rules.
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound covers lookups by unknown id.
	CodeNotFound Code = "not_found"
	// CodeConflict covers uniqueness violations (duplicate donor for a patient).
	CodeConflict Code = "conflict"
	// CodeInvalidState covers transitions attempted on terminal or wrong-state entities.
	CodeInvalidState Code = "invalid_state"
	// CodeInsufficientStock covers approvals short on AVAILABLE units.
	CodeInsufficientStock Code = "insufficient_stock"
	// CodeUnauthorized covers missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden covers authenticated callers lacking the required role.
	CodeForbidden Code = "forbidden"
	// CodeInvariantViolation covers aggregate invariants broken at construction
	// or transition time; services usually re-code these before surfacing.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal covers everything the caller cannot act on.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
// The cause remains reachable via errors.Is/errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var derr *Error
	for errors.As(err, &derr) {
		if derr.Code == code {
			return true
		}
		err = derr.cause
		if err == nil {
			return false
		}
	}
	return false
}

// Is is a convenience alias for HasCode, matching call-site reading order:
// dErrors.Is(err, dErrors.CodeNotFound).
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the outermost code, or CodeInternal when err is uncoded.
func CodeOf(err error) Code {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Code
	}
	return CodeInternal
}

// MessageOf extracts the outermost message, or an empty string when uncoded.
func MessageOf(err error) string {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Message
	}
	return ""
}
