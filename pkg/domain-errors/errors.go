// Package domainerrors defines the coded error taxonomy shared by every
// feature package. Services attach a Code (and optional details such as the
// balance deficit) so transport can translate errors without inspecting
// message strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and for HTTP translation.
type Code string

const (
	// Validation codes cover bad input shape or range. Never retried.
	CodeInvalidInput   Code = "invalid_input"
	CodeInvalidAmount  Code = "invalid_amount"
	CodeReasonRequired Code = "reason_required"

	// Invariant violations are recoverable and surfaced with context.
	CodeInsufficientBalance   Code = "insufficient_balance"
	CodeIllegalTransition     Code = "illegal_transition"
	CodeAlreadyDecided        Code = "already_decided"
	CodeUtilizationUnverified Code = "utilization_unverified"
	CodeProposalNotApproved   Code = "proposal_not_approved"
	CodeUnauthorizedTier      Code = "unauthorized_tier"

	// Authz.
	CodeUnauthorized     Code = "unauthorized"
	CodeForbiddenForRole Code = "forbidden_for_role"

	// Infrastructure facts.
	CodeNotFound Code = "not_found"
	CodeConflict Code = "conflict"
	CodeTimeout  Code = "timeout"
	CodeInternal Code = "internal"
)

// Error carries a code, a human-readable message, optional structured details
// and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetail attaches a structured detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an existing error with a code and message. A nil err yields nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// DetailsOf extracts structured details from err, or nil.
func DetailsOf(err error) map[string]any {
	var de *Error
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}

// ToHTTPStatus maps a code onto an HTTP status. Invariant violations use 422
// so clients can distinguish them from malformed requests.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeInvalidAmount, CodeReasonRequired:
		return http.StatusBadRequest
	case CodeInsufficientBalance, CodeIllegalTransition, CodeAlreadyDecided,
		CodeUtilizationUnverified, CodeProposalNotApproved:
		return http.StatusUnprocessableEntity
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbiddenForRole, CodeUnauthorizedTier:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
