package domain

import (
	"errors"
	"fmt"
)

// Top-level kinds. Every specific error below unwraps to one of them.
var (
	ErrValidation = errors.New("validation failed")
	ErrDetection  = errors.New("detection failed")
	ErrFetch      = errors.New("fetch failed")
)

var (
	ErrInvalidType = newKind("invalid image type", ErrValidation)
	ErrTooLarge    = newKind("image too large", ErrValidation)

	ErrNoImageSelected = newKind("no image selected", ErrDetection)
	ErrRequestFailed   = newKind("detection request failed", ErrDetection)

	ErrUnauthenticated = newKind("unauthenticated", ErrFetch)
	ErrNetworkFailure  = newKind("network failure", ErrFetch)
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrStaleResponse     = errors.New("stale response discarded")
	ErrNoResult          = errors.New("no detection result")
)

type kindError struct {
	msg    string
	parent error
}

func newKind(msg string, parent error) error {
	return &kindError{msg: msg, parent: parent}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.parent }

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
