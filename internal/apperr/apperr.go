// Package apperr define un conjunto cerrado de tipos de error que conservan la causa original.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindValidationFailed Kind = "validation_failed"
	KindConflict         Kind = "conflict"
	KindInfrastructure   Kind = "infrastructure"
)

// Error envuelve una causa con su Kind y la operacion que fallo.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is permite errors.Is(err, &apperr.Error{Kind: apperr.KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func NotFound(op string, err error) error { return New(KindNotFound, op, err) }

func Validation(op string, err error) error { return New(KindValidationFailed, op, err) }

func Conflict(op string, err error) error { return New(KindConflict, op, err) }

func Infra(op string, err error) error { return New(KindInfrastructure, op, err) }

// KindOf devuelve el Kind del primer *Error en la cadena, o Infrastructure si no hay ninguno.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}
