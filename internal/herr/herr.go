// Copyright 2022 Fortio Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package herr is hone's typed error-kind enum (SPEC_FULL.md §7), the Go
// rendering of the original Rust implementation's
// trackable::error::TrackableError<ErrorKind> (original_source/src/error.rs):
// a single concrete Error type carrying one of a small set of Kinds plus an
// optional wrapped cause, instead of exceptions-by-type.
package herr // import "github.com/sile/hone/internal/herr"

import (
	"errors"
	"fmt"
)

// Kind classifies an Error. See SPEC_FULL.md §7 for the semantics of each.
type Kind int

const (
	// InvalidInput: malformed CLI, bad JSON, out-of-range numeric constraint,
	// unknown scope/enum value, ask for an unsupported parameter type,
	// retry-tuner parameter mismatch.
	InvalidInput Kind = iota
	// ProtocolError: RPC referencing an unknown observation id, or a
	// metric/parameter name collision with an incompatible type.
	ProtocolError
	// ChildError: the worker subprocess failed to spawn.
	ChildError
	// IoError: event-log write failure, tempdir create/remove failure.
	IoError
	// Fatal: propagates and aborts the supervisor loop (event-log write
	// failures only — everything else is reported to the caller and the
	// loop continues).
	Fatal
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case ProtocolError:
		return "ProtocolError"
	case ChildError:
		return "ChildError"
	case IoError:
		return "IoError"
	case Fatal:
		return "Fatal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is hone's error type: a Kind plus a message and an optional cause.
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

// Unwrap returns the wrapped cause, if any, for errors.Is/As interop.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Invalidf is shorthand for New(InvalidInput, format, args...).
func Invalidf(format string, args ...interface{}) *Error {
	return New(InvalidInput, format, args...)
}

// Protocolf is shorthand for New(ProtocolError, format, args...).
func Protocolf(format string, args ...interface{}) *Error {
	return New(ProtocolError, format, args...)
}

// IsKind reports whether err is a *Error of the given kind (walking Unwrap chains).
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else Fatal
// (the safest default: an unrecognized error is treated as fatal by callers
// that branch on Kind, per SPEC_FULL.md §7 "only Fatal aborts the loop").
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Fatal
}
