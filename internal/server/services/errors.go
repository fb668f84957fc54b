// Package services holds the request-level use cases: issuing upload and
// download grants, confirming uploads, the application wizard and the admin
// review console. Services return *Error values whose Kind the HTTP layer
// maps to a status code.
package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindValidation
	KindForbidden
	KindNotFound
	KindConflict
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// Error is a classified failure with a client-facing message. Details are
// merged into the JSON error body; Err is the cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func validation(msg string, details map[string]any) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func notFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func conflict(msg string, details map[string]any) *Error {
	return &Error{Kind: KindConflict, Message: msg, Details: details}
}

// dependency wraps a failure of the store, registry or signer. The cause is
// echoed to the client under "details".
func dependency(msg string, err error) *Error {
	e := &Error{Kind: KindDependency, Message: msg, Err: err}
	if err != nil {
		e.Details = map[string]any{"details": err.Error()}
	}
	return e
}
