// Package errors vends the error type shared by all linkcore components, carrying a
// machine-readable code which maps to an http response status.
package errors

import (
	"errors"
	"net/http"
	"strings"
)

type ErrCode string

const (
	// ErrCodeBadInput flags malformed creation input, e.g. an unrecognized expiry code.
	ErrCodeBadInput ErrCode = "BadRequest"
	// ErrCodeNotFound flags lookup of an id which never existed.
	ErrCodeNotFound ErrCode = "NotFound"
	// ErrCodeGone flags a link which once existed but is now terminally unreadable:
	// expired, view quota exhausted, or one-time and already consumed.
	ErrCodeGone ErrCode = "Gone"
	// ErrCodeConflict flags an id collision at creation. Caller should retry with a new id.
	ErrCodeConflict ErrCode = "Conflict"
	// ErrCodeForbidden flags a password-protected link read with a wrong or missing password.
	ErrCodeForbidden ErrCode = "Forbidden"
	// ErrCodeServiceFailure flags an unavailable or timed-out store. Safe for the caller
	// to retry since no partial state is left behind.
	ErrCodeServiceFailure ErrCode = "ServiceFailure"
)

type Err struct {
	Code  ErrCode
	msg   string
	cause error
}

func (e *Err) Error() string {
	return e.msg
}

// Trace returns the error message chained with those of its causes
func (e *Err) Trace() string {
	b := &strings.Builder{}
	b.WriteString(e.msg)
	depth := 1
	err := errors.Unwrap(e)
	for err != nil {
		b.WriteString("\n")
		b.WriteString(strings.Repeat("\t", depth))
		b.WriteString("Caused by: ")
		b.WriteString(err.Error())
		depth++
		err = errors.Unwrap(err)
	}
	return b.String()
}

func (e *Err) Unwrap() error {
	return e.cause
}

// prefer New*(msg).WithCause(cause) over a 2-arg constructor - the latter's signature has less
// readability since user needs to look up docs to know what the 2nd param is for
func (e *Err) WithCause(c error) *Err {
	e.cause = c
	return e
}

func NewBadInput(m string) *Err {
	return &Err{Code: ErrCodeBadInput, msg: m}
}

func NewNotFound(m string) *Err {
	return &Err{Code: ErrCodeNotFound, msg: m}
}

func NewGone(m string) *Err {
	return &Err{Code: ErrCodeGone, msg: m}
}

func NewConflict(m string) *Err {
	return &Err{Code: ErrCodeConflict, msg: m}
}

func NewForbidden(m string) *Err {
	return &Err{Code: ErrCodeForbidden, msg: m}
}

func NewServiceFailure(m string) *Err {
	return &Err{Code: ErrCodeServiceFailure, msg: m}
}

// StatusCode returns the http response status code associated with the Err value
func (e *Err) StatusCode() int {
	switch e.Code {
	case ErrCodeBadInput:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeGone:
		return http.StatusGone
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
