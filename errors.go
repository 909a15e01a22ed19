// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package pbwire

import (
	"fmt"
	"strings"
)

// ErrorKind represents categories of wire-format errors for fast dispatch.
type ErrorKind uint8

const (
	// ErrKindOK indicates no error occurred
	ErrKindOK ErrorKind = iota
	// ErrKindEndOfStream indicates fewer bytes were available than a decode required
	ErrKindEndOfStream
	// ErrKindWireTypeMismatch indicates the field's wire type is not accepted by the requested operation
	ErrKindWireTypeMismatch
	// ErrKindVarintOverflow indicates a varint longer than 10 bytes or with invalid high bits
	ErrKindVarintOverflow
	// ErrKindFraming indicates a sub-item was not consumed exactly to its boundary
	ErrKindFraming
	// ErrKindRecursion indicates an object was found as its own ancestor
	ErrKindRecursion
	// ErrKindPackedField indicates a field was written while a different packed field was active
	ErrKindPackedField
	// ErrKindInvalidField indicates an invalid field number or wire type on the wire or in a call
	ErrKindInvalidField
	// ErrKindInvalidState indicates an operation was called in the wrong reader/writer state
	ErrKindInvalidState
	// ErrKindOverflow indicates a value did not fit the requested type
	ErrKindOverflow
	// ErrKindLengthMismatch indicates a replayed write did not match its measured length
	ErrKindLengthMismatch
	// ErrKindMaxDepthExceeded indicates the nesting depth limit was exceeded
	ErrKindMaxDepthExceeded
	// ErrKindIO indicates the underlying stream or sink failed
	ErrKindIO
)

var kindNames = [...]string{
	ErrKindOK:               "ok",
	ErrKindEndOfStream:      "end of stream",
	ErrKindWireTypeMismatch: "wire type mismatch",
	ErrKindVarintOverflow:   "varint overflow",
	ErrKindFraming:          "sub-item framing violation",
	ErrKindRecursion:        "recursion detected",
	ErrKindPackedField:      "packed field mismatch",
	ErrKindInvalidField:     "invalid field",
	ErrKindInvalidState:     "invalid state",
	ErrKindOverflow:         "arithmetic overflow",
	ErrKindLengthMismatch:   "length mismatch",
	ErrKindMaxDepthExceeded: "max depth exceeded",
	ErrKindIO:               "i/o failure",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Sentinels for errors.Is. They match any Error of the same kind.
var (
	ErrEndOfStream      = Error{kind: ErrKindEndOfStream}
	ErrWireTypeMismatch = Error{kind: ErrKindWireTypeMismatch}
	ErrVarintOverflow   = Error{kind: ErrKindVarintOverflow}
	ErrFraming          = Error{kind: ErrKindFraming}
	ErrRecursion        = Error{kind: ErrKindRecursion}
	ErrPackedField      = Error{kind: ErrKindPackedField}
	ErrInvalidField     = Error{kind: ErrKindInvalidField}
	ErrInvalidState     = Error{kind: ErrKindInvalidState}
	ErrOverflow         = Error{kind: ErrKindOverflow}
	ErrLengthMismatch   = Error{kind: ErrKindLengthMismatch}
	ErrMaxDepthExceeded = Error{kind: ErrKindMaxDepthExceeded}
	ErrIO               = Error{kind: ErrKindIO}
)

// Error is a lightweight error value optimized for hot path performance.
// It stores diagnostic context without allocating until Error() is called.
type Error struct {
	kind    ErrorKind
	message string
	cause   error
	// wire context, filled in by the Reader/Writer that raised it
	hasContext  bool
	fieldNumber int
	wireType    WireType
	position    int64
	depth       int
	// For framing and length errors
	expected int64
	actual   int64
}

// Ok returns true if no error occurred
func (e Error) Ok() bool {
	return e.kind == ErrKindOK
}

// HasError returns true if an error occurred
func (e Error) HasError() bool {
	return e.kind != ErrKindOK
}

// Kind returns the error kind for fast dispatch
func (e Error) Kind() ErrorKind {
	return e.kind
}

// FieldNumber returns the field being processed when the error was raised.
func (e Error) FieldNumber() int {
	return e.fieldNumber
}

// WireType returns the wire type being processed when the error was raised.
func (e Error) WireType() WireType {
	return e.wireType
}

// Position returns the absolute byte offset at which the error was raised.
func (e Error) Position() int64 {
	return e.position
}

// Depth returns the sub-item nesting depth at which the error was raised.
func (e Error) Depth() int {
	return e.depth
}

// Error implements the error interface with lazy formatting
func (e Error) Error() string {
	if e.kind == ErrKindOK {
		return ""
	}
	var b strings.Builder
	b.WriteString("pbwire: ")
	if e.message != "" {
		b.WriteString(e.message)
	} else {
		b.WriteString(e.kind.String())
	}
	switch e.kind {
	case ErrKindFraming, ErrKindLengthMismatch:
		if e.expected != 0 || e.actual != 0 {
			fmt.Fprintf(&b, " (expected %d, actual %d)", e.expected, e.actual)
		}
	}
	if e.hasContext {
		fmt.Fprintf(&b, " [field=%d, wire-type=%s, position=%d, depth=%d]",
			e.fieldNumber, e.wireType, e.position, e.depth)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Is reports whether target is an Error sentinel of the same kind.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	if !ok {
		return false
	}
	return t.kind == e.kind
}

// Unwrap returns the underlying I/O error, if any.
func (e Error) Unwrap() error {
	return e.cause
}

// EndOfStreamError creates an end-of-stream error
func EndOfStreamError(need int) Error {
	return Error{
		kind:    ErrKindEndOfStream,
		message: fmt.Sprintf("end of stream: need %d more byte(s)", need),
	}
}

// WireTypeMismatchError creates a wire type mismatch error for the named operation
func WireTypeMismatchError(op string, actual WireType) Error {
	return Error{
		kind:    ErrKindWireTypeMismatch,
		message: fmt.Sprintf("invalid wire-type %s for %s", actual, op),
	}
}

// VarintOverflowError creates a varint overflow error
func VarintOverflowError() Error {
	return Error{kind: ErrKindVarintOverflow, message: "varint overflow: more than 10 bytes or invalid high bits"}
}

// FramingError creates a sub-item framing error with expected vs actual positions
func FramingError(msg string, expected, actual int64) Error {
	return Error{
		kind:     ErrKindFraming,
		message:  msg,
		expected: expected,
		actual:   actual,
	}
}

// RecursionError creates a recursion-cycle error
func RecursionError(levels int) Error {
	return Error{
		kind:    ErrKindRecursion,
		message: fmt.Sprintf("possible recursion detected (offset: %d level(s))", levels),
	}
}

// PackedFieldError creates a packed-field mismatch error
func PackedFieldError(packed, field int) Error {
	return Error{
		kind:    ErrKindPackedField,
		message: fmt.Sprintf("field %d cannot be written while packed field %d is active", field, packed),
	}
}

// InvalidFieldErrorf creates a formatted invalid-field error
func InvalidFieldErrorf(format string, args ...any) Error {
	return Error{kind: ErrKindInvalidField, message: fmt.Sprintf(format, args...)}
}

// InvalidStateErrorf creates a formatted invalid-state error
func InvalidStateErrorf(format string, args ...any) Error {
	return Error{kind: ErrKindInvalidState, message: fmt.Sprintf(format, args...)}
}

// OverflowErrorf creates a formatted arithmetic overflow error
func OverflowErrorf(format string, args ...any) Error {
	return Error{kind: ErrKindOverflow, message: fmt.Sprintf(format, args...)}
}

// LengthMismatchError creates an error for a replay that wrote a different length than measured
func LengthMismatchError(expected, actual int64) Error {
	return Error{
		kind:     ErrKindLengthMismatch,
		message:  "written length does not match measured length",
		expected: expected,
		actual:   actual,
	}
}

// MaxDepthExceededError creates a max depth exceeded error
func MaxDepthExceededError(depth int) Error {
	return Error{
		kind:    ErrKindMaxDepthExceeded,
		message: fmt.Sprintf("max depth exceeded: depth=%d", depth),
	}
}

// IOError wraps a failure of the underlying stream or sink
func IOError(op string, cause error) Error {
	return Error{kind: ErrKindIO, message: op, cause: cause}
}

// withContext stamps wire context onto an error that does not carry it yet.
func (e Error) withContext(field int, wt WireType, position int64, depth int) Error {
	if e.hasContext {
		return e
	}
	e.hasContext = true
	e.fieldNumber = field
	e.wireType = wt
	e.position = position
	e.depth = depth
	return e
}

// SetError sets the error if no error has occurred yet (first-error-wins)
func (e *Error) SetError(err error) {
	if e == nil || e.kind != ErrKindOK || err == nil {
		return
	}
	if wireErr, ok := err.(Error); ok {
		*e = wireErr
		return
	}
	*e = Error{kind: ErrKindIO, message: "unexpected error", cause: err}
}

// CheckError returns the error if one occurred, nil otherwise
func (e *Error) CheckError() error {
	if e == nil || e.kind == ErrKindOK {
		return nil
	}
	return *e
}
