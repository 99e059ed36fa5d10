package service

import (
	"errors"
	"fmt"

	"cooplend/models"
)

// Sentinel errors returned by repositories
var (
	ErrNotFound            = errors.New("not found")
	ErrStatusConflict      = errors.New("status precondition no longer holds")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicate           = errors.New("already exists")
)

// ErrorKind classifies a failed transition for the caller
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindPreconditionFailed ErrorKind = "precondition_failed"
	KindInsufficientFunds  ErrorKind = "insufficient_funds"
	KindSystemFrozen       ErrorKind = "system_frozen"
	KindForbidden          ErrorKind = "forbidden"
	KindRateLimited        ErrorKind = "rate_limited"
	KindInternal           ErrorKind = "internal"
)

// Error is a typed transition failure. Message is safe to show to the caller
// for every kind except Internal.
type Error struct {
	Kind      ErrorKind
	Message   string
	Shortfall models.Money // set for KindInsufficientFunds
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError reports malformed or out-of-range input
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewPreconditionError reports an entity that is missing or not in the required status
func NewPreconditionError(format string, args ...any) *Error {
	return &Error{Kind: KindPreconditionFailed, Message: fmt.Sprintf(format, args...)}
}

// NewInsufficientFundsError reports a failed balance check together with the shortfall
func NewInsufficientFundsError(message string, shortfall models.Money) *Error {
	return &Error{Kind: KindInsufficientFunds, Message: message, Shortfall: shortfall}
}

// NewForbiddenError reports a caller acting outside its capability
func NewForbiddenError(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// NewRateLimitedError reports a caller that exceeded its call budget
func NewRateLimitedError(message string) *Error {
	return &Error{Kind: KindRateLimited, Message: message}
}

// ErrSystemFrozen is returned by every money-moving transition while the kill switch is on
var ErrSystemFrozen = &Error{Kind: KindSystemFrozen, Message: "System is currently frozen. All financial operations are paused."}

// KindOf returns the kind of a typed error, or KindInternal for anything else
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// ShortfallOf returns the shortfall of an insufficient funds error
func ShortfallOf(err error) models.Money {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Shortfall
	}
	return 0
}
