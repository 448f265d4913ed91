package api

import (
	"errors"
	"fmt"
)

// Kind classifies failures before they reach presentation.
type Kind int

const (
	// KindValidation covers bad input caught before or by the server
	// (file type, missing columns). Shown inline.
	KindValidation Kind = iota + 1
	// KindAuth covers rejected credentials.
	KindAuth
	// KindConnection covers an unreachable server.
	KindConnection
	// KindServer covers any other non-2xx answer carrying a message.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindConnection:
		return "connection"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every API call.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// NewValidationError builds a KindValidation error with a user-facing message.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}
