// Package apperr defines the error kinds the HTTP boundary understands.
//
// Domain packages wrap one of the kinds with context, e.g.
//
//	return apperr.NotFound("competition")
//
// and handlers map them to a status code with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrUpstream     = errors.New("upstream failure")
)

// NotFound wraps ErrNotFound with a human readable subject, e.g. "year not found".
func NotFound(subject string) error {
	return &kindError{kind: ErrNotFound, msg: subject + " not found"}
}

// Forbidden wraps ErrForbidden with a message shown to the client.
func Forbidden(msg string) error {
	return &kindError{kind: ErrForbidden, msg: msg}
}

// Unauthorized wraps ErrUnauthorized with a message shown to the client.
func Unauthorized(msg string) error {
	return &kindError{kind: ErrUnauthorized, msg: msg}
}

// Conflict wraps ErrConflict with a message shown to the client.
func Conflict(msg string) error {
	return &kindError{kind: ErrConflict, msg: msg}
}

// Validation wraps ErrValidation with a message shown to the client.
func Validation(msg string) error {
	return &kindError{kind: ErrValidation, msg: msg}
}

// Upstream wraps a blob store or image processing failure.
func Upstream(op string, err error) error {
	return &kindError{kind: ErrUpstream, msg: op, cause: err}
}

type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Message is the text safe to return to a client.
func (e *kindError) Message() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.cause }

// PublicMessage extracts the client-facing message of err, falling back to
// fallback for errors that carry internal detail only.
func PublicMessage(err error, fallback string) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.Message()
	}
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrValidation, ErrUnauthorized, ErrForbidden} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return fallback
}
