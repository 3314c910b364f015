// Package apperror defines the typed error kinds surfaced by the approval engine.
// Operations return (value, error); an *Error carries the kind the caller
// branches on and a message that explains the violated rule.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and transport adapters
type Kind string

const (
	KindValidation               Kind = "VALIDATION"
	KindNotFound                 Kind = "NOT_FOUND"
	KindForbidden                Kind = "FORBIDDEN"
	KindNotYourTurn              Kind = "NOT_YOUR_TURN"
	KindAlreadyProcessed         Kind = "ALREADY_PROCESSED"
	KindDocumentNotActionable    Kind = "DOCUMENT_NOT_ACTIONABLE"
	KindNoApprovalLineConfigured Kind = "NO_APPROVAL_LINE_CONFIGURED"
	KindInvalidLineDefinition    Kind = "INVALID_LINE_DEFINITION"
	KindEmptyApprovalLine        Kind = "EMPTY_APPROVAL_LINE"
	KindInternal                 Kind = "INTERNAL"
)

// Error is a classified engine error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Kind sentinels for errors.Is matching
var (
	ErrValidation               = &Error{Kind: KindValidation}
	ErrNotFound                 = &Error{Kind: KindNotFound}
	ErrForbidden                = &Error{Kind: KindForbidden}
	ErrNotYourTurn              = &Error{Kind: KindNotYourTurn}
	ErrAlreadyProcessed         = &Error{Kind: KindAlreadyProcessed}
	ErrDocumentNotActionable    = &Error{Kind: KindDocumentNotActionable}
	ErrNoApprovalLineConfigured = &Error{Kind: KindNoApprovalLineConfigured}
	ErrInvalidLineDefinition    = &Error{Kind: KindInvalidLineDefinition}
	ErrEmptyApprovalLine        = &Error{Kind: KindEmptyApprovalLine}
	ErrInternal                 = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when target is a bare kind sentinel
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" && t.Err == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

// New creates a classified error with a formatted message
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind with a message
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Validation creates a KindValidation error
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// NotFound creates a KindNotFound error for a resource id
func NotFound(resource string, id interface{}) *Error {
	return New(KindNotFound, "%s %v not found", resource, id)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsBusinessRule reports whether kind is a business-rule violation
func IsBusinessRule(kind Kind) bool {
	switch kind {
	case KindNotYourTurn, KindAlreadyProcessed, KindDocumentNotActionable,
		KindNoApprovalLineConfigured, KindInvalidLineDefinition, KindEmptyApprovalLine:
		return true
	}
	return false
}
