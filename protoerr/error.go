// Package protoerr implements the error taxonomy shared by every
// state machine in this module (CSP transport, CSP-E2E incoming
// message pipeline, rendezvous protocol, contact subtasks).
//
// The core never recovers on the embedder's behalf: every fallible
// call returns one of these codes wrapped around its cause, and
// protocol state machines latch into their terminal error state on
// the first one they see.
package protoerr

import (
	"errors"
	"fmt"
)

// Code classifies a failure the way an embedder needs to react to it.
type Code uint8

const (
	// InvalidParameter is API misuse by the embedder.
	InvalidParameter Code = iota + 1
	// InvalidState means a call was made in a state that cannot service it.
	InvalidState
	// InternalError is a bug-class failure: sequence overflow, a fixed
	// buffer that failed to encode, encryption failure.
	InternalError
	// DecryptionFailed is an AEAD authentication failure.
	DecryptionFailed
	// DecodingFailed is a structural wire-format decode failure.
	DecodingFailed
	// InvalidMessage is a semantically invalid, structurally decodable message.
	InvalidMessage
	// ServerError means the remote party violated an infallible invariant.
	ServerError
	// NetworkError is propagated from the embedder's transport, including timeouts.
	NetworkError
	// NotFound means the remote party has no record of a resource this
	// module asked for (e.g. a removed remote secret).
	NotFound
	// Blocked means a resource exists but the remote party currently
	// forbids access to it (e.g. a remote secret disabled by an
	// administrator).
	Blocked
	// Mismatch means a value returned by the remote party was
	// structurally valid but does not match what was expected.
	Mismatch
)

func (c Code) String() string {
	switch c {
	case InvalidParameter:
		return "InvalidParameter"
	case InvalidState:
		return "InvalidState"
	case InternalError:
		return "InternalError"
	case DecryptionFailed:
		return "DecryptionFailed"
	case DecodingFailed:
		return "DecodingFailed"
	case InvalidMessage:
		return "InvalidMessage"
	case ServerError:
		return "ServerError"
	case NetworkError:
		return "NetworkError"
	case NotFound:
		return "NotFound"
	case Blocked:
		return "Blocked"
	case Mismatch:
		return "Mismatch"
	default:
		return "Unknown"
	}
}

// Error wraps a Code with context and an optional underlying cause.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Code-tagged error with no wrapped cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// Wrap builds a Code-tagged error around an existing cause.
func Wrap(code Code, msg string, err error) error {
	if err == nil {
		return New(code, msg)
	}
	return &Error{Code: code, Msg: msg, Err: err}
}

// Is reports whether err carries the given Code anywhere in its chain.
func Is(err error, code Code) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == code
}
