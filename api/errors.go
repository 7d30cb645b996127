// File: api/errors.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error kinds and error handling utilities: ProtocolError, IoError,
// InvalidArgument, HandshakeRejected.

package api

import (
	"errors"
	"fmt"
)

// ErrorKind identifies which of the four policy buckets an Error belongs
// to.
type ErrorKind int

const (
	KindProtocol ErrorKind = iota
	KindIO
	KindInvalidArgument
	KindHandshakeRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindProtocol:
		return "protocol_error"
	case KindIO:
		return "io_error"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindHandshakeRejected:
		return "handshake_rejected"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying the kind, the operation in which it
// was raised, and the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewProtocolError wraps cause as a ProtocolError raised during op.
func NewProtocolError(op string, cause error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Err: cause}
}

// NewIOError wraps cause as an IoError raised during op.
func NewIOError(op string, cause error) *Error {
	return &Error{Kind: KindIO, Op: op, Err: cause}
}

// NewInvalidArgumentError wraps cause as an InvalidArgument error raised
// during op.
func NewInvalidArgumentError(op string, cause error) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Err: cause}
}

// NewHandshakeRejectedError wraps cause as a HandshakeRejected error raised
// during op.
func NewHandshakeRejectedError(op string, cause error) *Error {
	return &Error{Kind: KindHandshakeRejected, Op: op, Err: cause}
}

// IsKind reports whether err is an *Error of the given kind, unwrapping as
// needed.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
