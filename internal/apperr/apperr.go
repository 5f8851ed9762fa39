// Package apperr defines the error kinds the resolution pipeline reports to
// its transports. Each kind maps to exactly one outward status so callers never
// have to inspect message text to decide how to answer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// KindInput marks a malformed or incomplete request. No backend was called.
	KindInput Kind = "INVALID_INPUT"

	// KindConfig marks missing credentials or identifiers.
	KindConfig Kind = "CONFIG_MISSING"

	// KindClassification marks a failed item-classification call. It must never
	// be confused with a legitimate "no match".
	KindClassification Kind = "CLASSIFICATION_FAILED"

	// KindNetwork marks an unreachable retrieval backend (DNS or dial failure).
	KindNetwork Kind = "NETWORK_UNREACHABLE"

	// KindInternal is anything else.
	KindInternal Kind = "INTERNAL"
)

// Error is a classified pipeline error. Message is safe to show to end users;
// Err carries the underlying cause for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Input returns a KindInput error.
func Input(msg string) *Error {
	return &Error{Kind: KindInput, Message: msg}
}

// Config returns a KindConfig error.
func Config(msg string) *Error {
	return &Error{Kind: KindConfig, Message: msg}
}

// Classification wraps a failed classifier call.
func Classification(err error) *Error {
	return &Error{Kind: KindClassification, Message: "Failed to classify transcript", Err: err}
}

// Network wraps a connectivity failure with a user-facing message.
func Network(msg string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: msg, Err: err}
}

// Internal wraps an unclassified failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of err, falling back to fallback
// when err carries no classified message.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// HTTPStatus maps a kind to the HTTP status the transport responds with.
func HTTPStatus(k Kind) int {
	switch k {
	case KindInput:
		return http.StatusBadRequest
	case KindNetwork:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
