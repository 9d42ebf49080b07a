package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP boundary.
// Domain packages declare their sentinels with one of the constructors below;
// handlers map the kind to a status code without knowing the package that raised it.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidInput
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindProvider:
		return "provider"
	default:
		return "internal"
	}
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string

	// Code is the provider's own error code (KindProvider only, 0 when unknown).
	Code int

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func InvalidInput(msg string) *Error { return &Error{Kind: KindInvalidInput, Message: msg} }

// Provider wraps a failure returned by the telephony provider.
func Provider(msg string, code int, err error) *Error {
	return &Error{Kind: KindProvider, Message: msg, Code: code, Err: err}
}

// Duplicate is returned by stores when a unique constraint rejects a write.
func Duplicate(field string) *Error {
	return &Error{Kind: KindInvalidInput, Message: "Duplicate value for " + field}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
