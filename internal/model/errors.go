package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced at the session boundary.
type ErrorKind string

const (
	KindSchemaResolution  ErrorKind = "schema_resolution"
	KindExtraction        ErrorKind = "extraction"
	KindMalformedProposal ErrorKind = "malformed_proposal"
	KindConflict          ErrorKind = "conflict"
	KindValidation        ErrorKind = "validation"
	KindAuth              ErrorKind = "auth"
	KindTransport         ErrorKind = "transport"
	KindBusy              ErrorKind = "busy"
	KindInvalidState      ErrorKind = "invalid_state"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindInternal          ErrorKind = "internal"
)

// userMessages is the default user-facing text per kind.
var userMessages = map[ErrorKind]string{
	KindSchemaResolution:  "Could not load the attribute definitions for this product.",
	KindExtraction:        "Extraction failed. Please try again.",
	KindMalformedProposal: "The extractor returned a proposal without an attribute code.",
	KindConflict:          "The product was modified by another user. Please refresh and try again.",
	KindValidation:        "Validation error: Please check the values and try again.",
	KindAuth:              "Permission denied: You do not have access to modify this product.",
	KindTransport:         "Could not reach the PIM. Please try again.",
	KindBusy:              "Another operation of this kind is already running.",
	KindInvalidState:      "This action is not available right now.",
	KindNotFound:          "Not found.",
	KindInvalidInput:      "Invalid input.",
	KindInternal:          "An unexpected error occurred.",
}

// Error is a classified domain error. Message is user-facing; Err carries the
// underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error. An empty message uses the kind's
// default user text.
func NewError(kind ErrorKind, message string, err error) *Error {
	if message == "" {
		message = userMessages[kind]
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Errorf builds a classified error with a formatted user message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none. KindOf(nil) is "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns the user-facing text for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return userMessages[KindInternal]
}
