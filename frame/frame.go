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

// Package frame implements the wire codec: the 6-byte frame header,
// the fourteen type-specific bodies, and the length-prefixed framing
// used over stream-oriented transports, with pooled scratch buffers
// (bytebufferpool, the same buffer-reuse idiom pipeline/ uses) to
// avoid an allocation per frame.
package frame

import (
	"github.com/valyala/bytebufferpool"

	"github.com/packetd/rsocket/rsocketerrors"
)

// Type is the 6-bit frame type carried in the top bits of the header's
// second word.
type Type uint16

const (
	TypeSetup           Type = 0x01
	TypeLease           Type = 0x02
	TypeKeepalive       Type = 0x03
	TypeRequestResponse Type = 0x04
	TypeRequestFNF      Type = 0x05
	TypeRequestStream   Type = 0x06
	TypeRequestChannel  Type = 0x07
	TypeRequestN        Type = 0x08
	TypeCancel          Type = 0x09
	TypePayload         Type = 0x0A
	TypeError           Type = 0x0B
	TypeMetadataPush    Type = 0x0C
	TypeResume          Type = 0x0D
	TypeResumeOK        Type = 0x0E
)

func (t Type) String() string {
	switch t {
	case TypeSetup:
		return "SETUP"
	case TypeLease:
		return "LEASE"
	case TypeKeepalive:
		return "KEEPALIVE"
	case TypeRequestResponse:
		return "REQUEST_RESPONSE"
	case TypeRequestFNF:
		return "REQUEST_FNF"
	case TypeRequestStream:
		return "REQUEST_STREAM"
	case TypeRequestChannel:
		return "REQUEST_CHANNEL"
	case TypeRequestN:
		return "REQUEST_N"
	case TypeCancel:
		return "CANCEL"
	case TypePayload:
		return "PAYLOAD"
	case TypeError:
		return "ERROR"
	case TypeMetadataPush:
		return "METADATA_PUSH"
	case TypeResume:
		return "RESUME"
	case TypeResumeOK:
		return "RESUME_OK"
	default:
		return "UNKNOWN"
	}
}

// Flags is the 10-bit flag field. The interpretation of bit 6
// (COMPLETE/LEASE) and bit 7 (FOLLOW/RESUME/RESPOND) depends on the
// frame type, which reuses the same bit positions for different
// meanings across frame types.
type Flags uint16

const (
	FlagNext     Flags = 0x01 << 5
	FlagComplete Flags = 0x01 << 6
	FlagFollow   Flags = 0x01 << 7
	FlagMetadata Flags = 0x01 << 8
	FlagIgnore   Flags = 0x01 << 9

	FlagLease   = FlagComplete
	FlagResume  = FlagFollow
	FlagRespond = FlagFollow
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// RequestMax is the sentinel "infinite" value used as the default
// initial-request-n on streams and channels.
const RequestMax uint32 = 0x7FFFFFFF

const headerLen = 6
const lengthPrefixLen = 3

const maxU24 = 0xFFFFFF

// Body is implemented by every frame payload type. Len reports the
// encoded body length in bytes, exclusive of the 6-byte header.
type Body interface {
	Type() Type
	WriteTo(buf *bytebufferpool.ByteBuffer)
	Len() int
}

// Frame is a single decoded protocol unit: a stream id, the flags
// from its header, and its type-specific body.
type Frame struct {
	StreamID uint32
	Flags    Flags
	Body     Body
}

// New wraps a stream id, flags and body into a Frame. Type is read
// off body.Type() rather than stored separately.
func New(streamID uint32, flags Flags, body Body) *Frame {
	return &Frame{StreamID: streamID, Flags: flags, Body: body}
}

func (f *Frame) Type() Type { return f.Body.Type() }

func (f *Frame) HasNext() bool     { return f.Flags.Has(FlagNext) }
func (f *Frame) HasComplete() bool { return f.Flags.Has(FlagComplete) }
func (f *Frame) HasFollow() bool   { return f.Flags.Has(FlagFollow) }
func (f *Frame) HasMetadata() bool { return f.Flags.Has(FlagMetadata) }

// IsFollowable reports whether a FOLLOW flag on this frame type means
// a Joiner should be started for its stream id, and whether this
// particular type is itself a PAYLOAD fragment continuation.
func (f *Frame) IsFollowable() (followable bool, isPayload bool) {
	switch f.Body.Type() {
	case TypeRequestFNF, TypeRequestResponse, TypeRequestStream, TypeRequestChannel:
		return true, false
	case TypePayload:
		return true, true
	default:
		return false, false
	}
}

func header(streamID uint32, flags Flags, t Type) [headerLen]byte {
	var h [headerLen]byte
	h[0] = byte(streamID >> 24)
	h[1] = byte(streamID >> 16)
	h[2] = byte(streamID >> 8)
	h[3] = byte(streamID)
	word := (uint16(t) << 10) | uint16(flags)
	h[4] = byte(word >> 8)
	h[5] = byte(word)
	return h
}

// Encode serializes f as length ‖ header ‖ body, pulling its scratch
// buffer from bytebufferpool's shared default pool rather than
// allocating per call.
func Encode(f *Frame) []byte {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	h := header(f.StreamID, f.Flags, f.Body.Type())
	buf.Write(h[:])
	f.Body.WriteTo(buf)

	total := buf.Len()
	out := make([]byte, lengthPrefixLen+total)
	out[0] = byte(total >> 16)
	out[1] = byte(total >> 8)
	out[2] = byte(total)
	copy(out[lengthPrefixLen:], buf.Bytes())
	return out
}

// EncodeUnframed serializes f as header ‖ body with no length prefix,
// for message-oriented transports (one frame per WebSocket message).
func EncodeUnframed(f *Frame) []byte {
	h := header(f.StreamID, f.Flags, f.Body.Type())
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.Write(h[:])
	f.Body.WriteTo(buf)

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}

// Decode consumes one length-prefixed frame off the front of b and
// returns it along with the number of bytes consumed. It returns
// rsocketerrors.IncompleteFrame() without modifying the caller's view
// of b when fewer than a full frame is available, and
// InvalidInputError for malformed bodies.
func Decode(b []byte) (*Frame, int, error) {
	if len(b) < lengthPrefixLen {
		return nil, 0, rsocketerrors.IncompleteFrame()
	}
	length := int(b[0])<<16 | int(b[1])<<8 | int(b[2])
	if length > maxU24 {
		return nil, 0, rsocketerrors.InvalidInputError("frame: length exceeds u24 range")
	}
	if len(b) < lengthPrefixLen+length {
		return nil, 0, rsocketerrors.IncompleteFrame()
	}

	f, err := DecodeUnframed(b[lengthPrefixLen : lengthPrefixLen+length])
	if err != nil {
		return nil, 0, err
	}
	return f, lengthPrefixLen + length, nil
}

// DecodeUnframed decodes exactly one header+body with no length
// prefix, for message-oriented transports where b is already known to
// hold exactly one frame.
func DecodeUnframed(b []byte) (*Frame, error) {
	if len(b) < headerLen {
		return nil, rsocketerrors.InvalidInputError("frame: truncated header")
	}
	streamID := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	word := uint16(b[4])<<8 | uint16(b[5])
	flags := Flags(word & 0x03FF)
	typ := Type(word >> 10)
	rest := b[headerLen:]

	body, err := decodeBody(typ, flags, rest)
	if err != nil {
		return nil, err
	}
	return New(streamID, flags, body), nil
}

func decodeBody(t Type, flags Flags, b []byte) (Body, error) {
	switch t {
	case TypeSetup:
		return decodeSetup(flags, b)
	case TypeLease:
		return decodeLease(flags, b)
	case TypeKeepalive:
		return decodeKeepalive(flags, b)
	case TypeRequestResponse:
		return decodeRequestResponse(flags, b)
	case TypeRequestFNF:
		return decodeRequestFNF(flags, b)
	case TypeRequestStream:
		return decodeRequestStream(flags, b)
	case TypeRequestChannel:
		return decodeRequestChannel(flags, b)
	case TypeRequestN:
		return decodeRequestN(flags, b)
	case TypeCancel:
		return decodeCancel(flags, b)
	case TypePayload:
		return decodePayload(flags, b)
	case TypeError:
		return decodeError(flags, b)
	case TypeMetadataPush:
		return decodeMetadataPush(flags, b)
	case TypeResume:
		return decodeResume(flags, b)
	case TypeResumeOK:
		return decodeResumeOK(flags, b)
	default:
		return nil, rsocketerrors.InvalidInputError("frame: unknown frame type")
	}
}

// readMetadataAndData splits the trailing payload section of a body
// per the FLAG_METADATA convention: when set, a u24 length prefixes
// the metadata; whatever remains is data.
func readMetadataAndData(flags Flags, b []byte) (metadata, data []byte, err error) {
	if flags.Has(FlagMetadata) {
		if len(b) < lengthPrefixLen {
			return nil, nil, rsocketerrors.InvalidInputError("frame: truncated metadata length")
		}
		n := int(b[0])<<16 | int(b[1])<<8 | int(b[2])
		b = b[lengthPrefixLen:]
		if len(b) < n {
			return nil, nil, rsocketerrors.InvalidInputError("frame: truncated metadata")
		}
		metadata = b[:n]
		b = b[n:]
	}
	if len(b) > 0 {
		data = b
	}
	return metadata, data, nil
}

func writeMetadataAndData(buf *bytebufferpool.ByteBuffer, metadata, data []byte) {
	if metadata != nil {
		n := len(metadata)
		buf.WriteByte(byte(n >> 16))
		buf.WriteByte(byte(n >> 8))
		buf.WriteByte(byte(n))
		buf.Write(metadata)
	}
	if data != nil {
		buf.Write(data)
	}
}

func payloadLen(metadata, data []byte) int {
	n := 0
	if metadata != nil {
		n += lengthPrefixLen + len(metadata)
	}
	if data != nil {
		n += len(data)
	}
	return n
}

func putU32(buf *bytebufferpool.ByteBuffer, v uint32) {
	buf.Write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

func putU16(buf *bytebufferpool.ByteBuffer, v uint16) {
	buf.Write([]byte{byte(v >> 8), byte(v)})
}

func putU64(buf *bytebufferpool.ByteBuffer, v uint64) {
	buf.Write([]byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	})
}
