// Package apperror defines the closed error taxonomy shared by the cache,
// the request pipeline and the recovery layer.
//
// Every failure surfaced to application code is an *Error carrying a
// Category and a Kind. The user-facing message, technical message,
// recoverability and severity are pure functions of the kind (and, for
// server errors, the status code), never mutable state.
package apperror

import (
	"errors"
	"fmt"
)

// Category is the top-level error family.
type Category string

const (
	CategoryNetwork        Category = "network"
	CategoryAuthentication Category = "authentication"
	CategoryData           Category = "data"
	CategoryAI             Category = "ai"
	CategoryGeneral        Category = "general"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryNetwork,
	CategoryAuthentication,
	CategoryData,
	CategoryAI,
	CategoryGeneral,
}

// Severity tells calling UI code how loudly to present an error.
// It never changes control flow.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is a categorized failure.
type Error struct {
	// Kind is the sub-kind within the category.
	Kind Kind

	// StatusCode is set for KindServerError.
	StatusCode int

	// Reason carries the free-form detail of parameterised kinds
	// (requestFailed, validationFailed, signInFailed, extractionFailed, unexpected).
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// New creates an error of the given kind.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// Category returns the category the kind belongs to.
func (e *Error) Category() Category {
	return e.Kind.info().category
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Category(), e.Kind, e.TechnicalMessage(), e.Err)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Category(), e.Kind, e.TechnicalMessage())
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a Kind equal to e.Kind, or an *Error of the same kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return t != nil && e.Kind == t.Kind
	}
	return false
}

// UserMessage is the non-technical message shown to end users.
func (e *Error) UserMessage() string {
	return e.Kind.info().userMessage
}

// TechnicalMessage is the diagnostic message intended for logs.
func (e *Error) TechnicalMessage() string {
	info := e.Kind.info()
	switch e.Kind {
	case KindServerError:
		return fmt.Sprintf("%s (HTTP %d)", info.technical, e.StatusCode)
	case KindRequestFailed, KindValidationFailed, KindSignInFailed, KindExtractionFailed, KindUnexpected:
		if e.Reason != "" {
			return info.technical + ": " + e.Reason
		}
	}
	return info.technical
}

// IsRecoverable reports whether an automatic recovery attempt makes sense.
// Server errors are recoverable only for 5xx status codes.
func (e *Error) IsRecoverable() bool {
	if e.Kind == KindServerError {
		return e.StatusCode >= 500 && e.StatusCode <= 599
	}
	return e.Kind.info().recoverable
}

// Severity returns the presentation severity.
func (e *Error) Severity() Severity {
	if e.Kind == KindServerError && e.StatusCode >= 400 && e.StatusCode < 500 {
		return SeverityMedium
	}
	return e.Kind.info().severity
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}

// CategoryOf returns the category of err, or CategoryGeneral when err is not categorized.
func CategoryOf(err error) Category {
	if appErr, ok := As(err); ok {
		return appErr.Category()
	}
	return CategoryGeneral
}
