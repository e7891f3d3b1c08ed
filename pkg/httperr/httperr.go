// Package httperr carries stable error codes across service boundaries so
// transport handlers can map outcomes to status codes without string
// matching. The message IS the code.
package httperr

import "errors"

type BadRequestError struct {
	msg string
}

func (e *BadRequestError) Error() string { return e.msg }

func NewBadRequest(msg string) error { return &BadRequestError{msg: msg} }

func IsBadRequest(err error) bool {
	var target *BadRequestError
	return errors.As(err, &target)
}

type ConflictError struct {
	msg string
}

func (e *ConflictError) Error() string { return e.msg }

func NewConflict(msg string) error { return &ConflictError{msg: msg} }

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
