// Package apperr carries the error taxonomy surfaced to HTTP clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorises a failure.
type Kind string

const (
	KindInvalidInput   Kind = "invalid_input"
	KindPageOutOfRange Kind = "page_out_of_range"
	KindTimeout        Kind = "timeout"
	KindConversion     Kind = "conversion"
	KindMerge          Kind = "merge"
	KindNotFound       Kind = "not_found"
	KindTooLarge       Kind = "too_large"
	KindInternal       Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindInvalidInput:   http.StatusBadRequest,
	KindPageOutOfRange: http.StatusBadRequest,
	KindTimeout:        http.StatusRequestTimeout,
	KindConversion:     http.StatusInternalServerError,
	KindMerge:          http.StatusInternalServerError,
	KindNotFound:       http.StatusNotFound,
	KindTooLarge:       http.StatusRequestEntityTooLarge,
	KindInternal:       http.StatusInternalServerError,
}

// Error is a classified application error. Message is safe to show clients.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCode returns the HTTP status for the error's kind.
func (e *Error) StatusCode() int {
	if code, ok := statusByKind[e.Kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, fmt.Sprintf(format, args...))
}

func NotFound(msg string) *Error { return New(KindNotFound, msg) }

func TooLarge(limitMB int64) *Error {
	return New(KindTooLarge, fmt.Sprintf("file too large, maximum is %dMB", limitMB))
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps any error to an HTTP status.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the client-facing text for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil && (e.Kind == KindConversion || e.Kind == KindMerge) {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
	return "internal server error"
}
