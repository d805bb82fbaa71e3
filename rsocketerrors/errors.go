// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rsocketerrors defines the typed error taxonomy the duplex
// engine and responder binding raise and propagate, wire-coded per
// the ERROR frame's error-code field.
package rsocketerrors

import "fmt"

// Code is the wire error code carried on an ERROR frame body.
type Code uint32

const (
	CodeInvalidSetup       Code = 0x00000001
	CodeUnsupportedSetup   Code = 0x00000002
	CodeRejectedSetup      Code = 0x00000003
	CodeRejectedResume     Code = 0x00000004
	CodeConnectionError    Code = 0x00000101
	CodeConnectionClosed   Code = 0x00000102
	CodeApplicationError   Code = 0x00000201
	CodeRejected           Code = 0x00000202
	CodeCancelled          Code = 0x00000203
	CodeInvalid            Code = 0x00000204
)

// Kind classifies an error independent of its wire code, including
// kinds that never cross the wire (codec and transport failures).
type Kind int

const (
	KindInvalidSetup Kind = iota
	KindUnsupportedSetup
	KindRejectedSetup
	KindRejectedResume
	KindConnectionException
	KindConnectionClosed
	KindApplicationException
	KindRequestRejected
	KindRequestCancelled
	KindRequestInvalid
	KindReserved

	// KindIncompleteFrame is local-only: the codec needs more bytes.
	KindIncompleteFrame
	// KindIOError wraps a transport-level read/write failure.
	KindIOError
	// KindOther wraps an error from an extension package (e.g. a
	// malformed composite-metadata or routing-metadata entry).
	KindOther
	// KindWithDescription is a generic, application-raised error with
	// no more specific kind.
	KindWithDescription
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSetup:
		return "INVALID_SETUP"
	case KindUnsupportedSetup:
		return "UNSUPPORTED_SETUP"
	case KindRejectedSetup:
		return "REJECTED_SETUP"
	case KindRejectedResume:
		return "REJECTED_RESUME"
	case KindConnectionException:
		return "CONNECTION_ERROR"
	case KindConnectionClosed:
		return "CONNECTION_CLOSED"
	case KindApplicationException:
		return "APPLICATION_ERROR"
	case KindRequestRejected:
		return "REJECTED"
	case KindRequestCancelled:
		return "CANCELED"
	case KindRequestInvalid:
		return "INVALID"
	case KindIncompleteFrame:
		return "INCOMPLETE_FRAME"
	case KindIOError:
		return "IO_ERROR"
	case KindOther:
		return "OTHER"
	case KindWithDescription:
		return "WITH_DESCRIPTION"
	default:
		return "RESERVED"
	}
}

// RSocketError is the single error type every public operation
// returns. It always carries a Kind; Code and Description are
// populated when the error originated from, or is destined for, the
// wire.
type RSocketError struct {
	Kind        Kind
	Code        Code
	Description string
	cause       error
}

func (e *RSocketError) Error() string {
	if e.Description == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind.String(), e.Description)
}

func (e *RSocketError) Unwrap() error {
	return e.cause
}

func newErr(kind Kind, code Code, desc string) *RSocketError {
	return &RSocketError{Kind: kind, Code: code, Description: desc}
}

func InvalidSetup(desc string) *RSocketError   { return newErr(KindInvalidSetup, CodeInvalidSetup, desc) }
func UnsupportedSetup(desc string) *RSocketError {
	return newErr(KindUnsupportedSetup, CodeUnsupportedSetup, desc)
}
func RejectedSetup(desc string) *RSocketError  { return newErr(KindRejectedSetup, CodeRejectedSetup, desc) }
func RejectedResume(desc string) *RSocketError { return newErr(KindRejectedResume, CodeRejectedResume, desc) }
func ConnectionException(desc string) *RSocketError {
	return newErr(KindConnectionException, CodeConnectionError, desc)
}
func ConnectionClosed(desc string) *RSocketError {
	return newErr(KindConnectionClosed, CodeConnectionClosed, desc)
}
func ApplicationException(desc string) *RSocketError {
	return newErr(KindApplicationException, CodeApplicationError, desc)
}
func RequestRejected(desc string) *RSocketError {
	return newErr(KindRequestRejected, CodeRejected, desc)
}
func RequestCancelled(desc string) *RSocketError {
	return newErr(KindRequestCancelled, CodeCancelled, desc)
}
func RequestInvalid(desc string) *RSocketError {
	return newErr(KindRequestInvalid, CodeInvalid, desc)
}
func Reserved(code Code, desc string) *RSocketError {
	return newErr(KindReserved, code, desc)
}

// IncompleteFrame reports that the codec needs more bytes before it
// can decode a full frame; never carries a wire code.
func IncompleteFrame() *RSocketError {
	return &RSocketError{Kind: KindIncompleteFrame}
}

// InvalidInputError reports malformed wire bytes the codec refuses to
// decode (out-of-range lengths, an ill-formed PAYLOAD, ...).
func InvalidInputError(desc string) *RSocketError {
	return newErr(KindWithDescription, 0, desc)
}

// IOError wraps a transport-level error.
func IOError(cause error) *RSocketError {
	e := newErr(KindIOError, 0, cause.Error())
	e.cause = cause
	return e
}

// Other wraps an error raised by an extension codec (composite or
// routing metadata).
func Other(cause error) *RSocketError {
	e := newErr(KindOther, 0, cause.Error())
	e.cause = cause
	return e
}

// WithDescription is a generic, locally raised error.
func WithDescription(desc string) *RSocketError {
	return newErr(KindWithDescription, 0, desc)
}

// FromWireCode maps a wire error-code to an RSocketError, following
// the taxonomy reserved ranges. Codes outside the known reserved
// blocks decode to KindReserved so peers can forward-compatibly
// surface application-defined codes.
func FromWireCode(code Code, desc string) *RSocketError {
	switch code {
	case CodeInvalidSetup:
		return InvalidSetup(desc)
	case CodeUnsupportedSetup:
		return UnsupportedSetup(desc)
	case CodeRejectedSetup:
		return RejectedSetup(desc)
	case CodeRejectedResume:
		return RejectedResume(desc)
	case CodeConnectionError:
		return ConnectionException(desc)
	case CodeConnectionClosed:
		return ConnectionClosed(desc)
	case CodeApplicationError:
		return ApplicationException(desc)
	case CodeRejected:
		return RequestRejected(desc)
	case CodeCancelled:
		return RequestCancelled(desc)
	case CodeInvalid:
		return RequestInvalid(desc)
	default:
		return Reserved(code, desc)
	}
}
