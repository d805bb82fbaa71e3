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

package frame

import (
	"github.com/valyala/bytebufferpool"

	"github.com/packetd/rsocket/rsocketerrors"
)

// DefaultMIMEType is the MIME string SETUP defaults to for both
// metadata and data when the caller doesn't set one explicitly.
const DefaultMIMEType = "application/binary"

// Setup is the SETUP frame body: connection parameters plus an
// optional initial payload.
type Setup struct {
	VersionMajor  uint16
	VersionMinor  uint16
	KeepaliveMS   uint32
	LifetimeMS    uint32
	Token         []byte
	MIMEMetadata  string
	MIMEData      string
	Metadata      []byte
	Data          []byte
}

func (Setup) Type() Type { return TypeSetup }

func (s *Setup) Len() int {
	n := 2 + 2 + 4 + 4
	if s.Token != nil {
		n += 2 + len(s.Token)
	}
	n += 1 + len(s.MIMEMetadata) + 1 + len(s.MIMEData)
	n += payloadLen(s.Metadata, s.Data)
	return n
}

func (s *Setup) WriteTo(buf *bytebufferpool.ByteBuffer) {
	putU16(buf, s.VersionMajor)
	putU16(buf, s.VersionMinor)
	putU32(buf, s.KeepaliveMS)
	putU32(buf, s.LifetimeMS)
	if s.Token != nil {
		putU16(buf, uint16(len(s.Token)))
		buf.Write(s.Token)
	}
	buf.WriteByte(byte(len(s.MIMEMetadata) - 1))
	buf.WriteString(s.MIMEMetadata)
	buf.WriteByte(byte(len(s.MIMEData) - 1))
	buf.WriteString(s.MIMEData)
	writeMetadataAndData(buf, s.Metadata, s.Data)
}

func decodeSetup(flags Flags, b []byte) (*Setup, error) {
	if len(b) < 12 {
		return nil, rsocketerrors.IncompleteFrame()
	}
	major := uint16(b[0])<<8 | uint16(b[1])
	minor := uint16(b[2])<<8 | uint16(b[3])
	keepalive := uint32(b[4])<<24 | uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7])
	lifetime := uint32(b[8])<<24 | uint32(b[9])<<16 | uint32(b[10])<<8 | uint32(b[11])
	b = b[12:]

	var token []byte
	if flags.Has(FlagResume) {
		if len(b) < 2 {
			return nil, rsocketerrors.IncompleteFrame()
		}
		l := int(b[0])<<8 | int(b[1])
		b = b[2:]
		if len(b) < l {
			return nil, rsocketerrors.IncompleteFrame()
		}
		token = b[:l]
		b = b[l:]
	}

	if len(b) < 1 {
		return nil, rsocketerrors.IncompleteFrame()
	}
	mimeMetaLen := int(b[0]) + 1
	b = b[1:]
	if len(b) < mimeMetaLen {
		return nil, rsocketerrors.IncompleteFrame()
	}
	mimeMeta := string(b[:mimeMetaLen])
	b = b[mimeMetaLen:]

	if len(b) < 1 {
		return nil, rsocketerrors.IncompleteFrame()
	}
	mimeDataLen := int(b[0]) + 1
	b = b[1:]
	if len(b) < mimeDataLen {
		return nil, rsocketerrors.IncompleteFrame()
	}
	mimeData := string(b[:mimeDataLen])
	b = b[mimeDataLen:]

	metadata, data, err := readMetadataAndData(flags, b)
	if err != nil {
		return nil, err
	}

	return &Setup{
		VersionMajor: major,
		VersionMinor: minor,
		KeepaliveMS:  keepalive,
		LifetimeMS:   lifetime,
		Token:        token,
		MIMEMetadata: mimeMeta,
		MIMEData:     mimeData,
		Metadata:     metadata,
		Data:         data,
	}, nil
}

// Lease is the LEASE frame body.
type Lease struct {
	TTLMS              uint32
	NumberOfRequests   uint32
	Metadata           []byte
}

func (Lease) Type() Type { return TypeLease }

func (l *Lease) Len() int {
	n := 8
	if l.Metadata != nil {
		n += len(l.Metadata)
	}
	return n
}

func (l *Lease) WriteTo(buf *bytebufferpool.ByteBuffer) {
	putU32(buf, l.TTLMS)
	putU32(buf, l.NumberOfRequests)
	if l.Metadata != nil {
		buf.Write(l.Metadata)
	}
}

func decodeLease(flags Flags, b []byte) (*Lease, error) {
	if len(b) < 8 {
		return nil, rsocketerrors.IncompleteFrame()
	}
	ttl := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	n := uint32(b[4])<<24 | uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7])
	b = b[8:]

	var metadata []byte
	if flags.Has(FlagMetadata) && len(b) > 0 {
		metadata = b
	}
	return &Lease{TTLMS: ttl, NumberOfRequests: n, Metadata: metadata}, nil
}

// Keepalive is the KEEPALIVE frame body. LastReceivedPosition is
// always 0: resumption isn't implemented, so there is no received
// position to report.
type Keepalive struct {
	LastReceivedPosition uint64
	Data                 []byte
}

func (Keepalive) Type() Type { return TypeKeepalive }

func (k *Keepalive) Len() int {
	n := 8
	if k.Data != nil {
		n += len(k.Data)
	}
	return n
}

func (k *Keepalive) WriteTo(buf *bytebufferpool.ByteBuffer) {
	putU64(buf, k.LastReceivedPosition)
	if k.Data != nil {
		buf.Write(k.Data)
	}
}

func decodeKeepalive(flags Flags, b []byte) (*Keepalive, error) {
	if len(b) < 8 {
		return nil, rsocketerrors.IncompleteFrame()
	}
	position := uint64(0)
	for i := 0; i < 8; i++ {
		position = position<<8 | uint64(b[i])
	}
	b = b[8:]
	var data []byte
	if len(b) > 0 {
		data = b
	}
	return &Keepalive{LastReceivedPosition: position, Data: data}, nil
}

// RequestResponse is the REQUEST_RESPONSE frame body.
type RequestResponse struct {
	Metadata []byte
	Data     []byte
}

func (RequestResponse) Type() Type { return TypeRequestResponse }
func (r *RequestResponse) Len() int { return payloadLen(r.Metadata, r.Data) }
func (r *RequestResponse) WriteTo(buf *bytebufferpool.ByteBuffer) {
	writeMetadataAndData(buf, r.Metadata, r.Data)
}

func decodeRequestResponse(flags Flags, b []byte) (*RequestResponse, error) {
	metadata, data, err := readMetadataAndData(flags, b)
	if err != nil {
		return nil, err
	}
	return &RequestResponse{Metadata: metadata, Data: data}, nil
}

// RequestFNF is the REQUEST_FNF frame body.
type RequestFNF struct {
	Metadata []byte
	Data     []byte
}

func (RequestFNF) Type() Type { return TypeRequestFNF }
func (r *RequestFNF) Len() int { return payloadLen(r.Metadata, r.Data) }
func (r *RequestFNF) WriteTo(buf *bytebufferpool.ByteBuffer) {
	writeMetadataAndData(buf, r.Metadata, r.Data)
}

func decodeRequestFNF(flags Flags, b []byte) (*RequestFNF, error) {
	metadata, data, err := readMetadataAndData(flags, b)
	if err != nil {
		return nil, err
	}
	return &RequestFNF{Metadata: metadata, Data: data}, nil
}

// RequestStream is the REQUEST_STREAM frame body.
type RequestStream struct {
	InitialRequestN uint32
	Metadata        []byte
	Data            []byte
}

func (RequestStream) Type() Type { return TypeRequestStream }
func (r *RequestStream) Len() int { return 4 + payloadLen(r.Metadata, r.Data) }
func (r *RequestStream) WriteTo(buf *bytebufferpool.ByteBuffer) {
	putU32(buf, r.InitialRequestN)
	writeMetadataAndData(buf, r.Metadata, r.Data)
}

func decodeRequestStream(flags Flags, b []byte) (*RequestStream, error) {
	if len(b) < 4 {
		return nil, rsocketerrors.IncompleteFrame()
	}
	n := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	metadata, data, err := readMetadataAndData(flags, b[4:])
	if err != nil {
		return nil, err
	}
	return &RequestStream{InitialRequestN: n, Metadata: metadata, Data: data}, nil
}

// RequestChannel is the REQUEST_CHANNEL frame body.
type RequestChannel struct {
	InitialRequestN uint32
	Metadata        []byte
	Data            []byte
}

func (RequestChannel) Type() Type { return TypeRequestChannel }
func (r *RequestChannel) Len() int { return 4 + payloadLen(r.Metadata, r.Data) }
func (r *RequestChannel) WriteTo(buf *bytebufferpool.ByteBuffer) {
	putU32(buf, r.InitialRequestN)
	writeMetadataAndData(buf, r.Metadata, r.Data)
}

func decodeRequestChannel(flags Flags, b []byte) (*RequestChannel, error) {
	if len(b) < 4 {
		return nil, rsocketerrors.IncompleteFrame()
	}
	n := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	metadata, data, err := readMetadataAndData(flags, b[4:])
	if err != nil {
		return nil, err
	}
	return &RequestChannel{InitialRequestN: n, Metadata: metadata, Data: data}, nil
}

// RequestN is the REQUEST_N frame body.
type RequestN struct {
	N uint32
}

func (RequestN) Type() Type { return TypeRequestN }
func (r *RequestN) Len() int { return 4 }
func (r *RequestN) WriteTo(buf *bytebufferpool.ByteBuffer) { putU32(buf, r.N) }

func decodeRequestN(flags Flags, b []byte) (*RequestN, error) {
	if len(b) < 4 {
		return nil, rsocketerrors.IncompleteFrame()
	}
	n := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return &RequestN{N: n}, nil
}

// Cancel is the CANCEL frame body: carries no content of its own.
type Cancel struct{}

func (Cancel) Type() Type                           { return TypeCancel }
func (Cancel) Len() int                              { return 0 }
func (Cancel) WriteTo(buf *bytebufferpool.ByteBuffer) {}

func decodeCancel(flags Flags, b []byte) (*Cancel, error) {
	return &Cancel{}, nil
}

// Payload is the PAYLOAD frame body, used for every NEXT/COMPLETE
// delivery across all four interaction models.
type Payload struct {
	Metadata []byte
	Data     []byte
}

func (Payload) Type() Type { return TypePayload }
func (p *Payload) Len() int { return payloadLen(p.Metadata, p.Data) }
func (p *Payload) WriteTo(buf *bytebufferpool.ByteBuffer) {
	writeMetadataAndData(buf, p.Metadata, p.Data)
}

func decodePayload(flags Flags, b []byte) (*Payload, error) {
	metadata, data, err := readMetadataAndData(flags, b)
	if err != nil {
		return nil, err
	}
	return &Payload{Metadata: metadata, Data: data}, nil
}

// Error is the ERROR frame body.
type Error struct {
	Code uint32
	Data []byte
}

func (Error) Type() Type { return TypeError }
func (e *Error) Len() int {
	n := 4
	if e.Data != nil {
		n += len(e.Data)
	}
	return n
}
func (e *Error) WriteTo(buf *bytebufferpool.ByteBuffer) {
	putU32(buf, e.Code)
	if e.Data != nil {
		buf.Write(e.Data)
	}
}

func decodeError(flags Flags, b []byte) (*Error, error) {
	if len(b) < 4 {
		return nil, rsocketerrors.IncompleteFrame()
	}
	code := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	b = b[4:]
	var data []byte
	if len(b) > 0 {
		data = b
	}
	return &Error{Code: code, Data: data}, nil
}

// MetadataPush is the METADATA_PUSH frame body: always carries
// metadata, never data, and has no stream-id of its own (stream id 0).
type MetadataPush struct {
	Metadata []byte
}

func (MetadataPush) Type() Type { return TypeMetadataPush }
func (m *MetadataPush) Len() int { return len(m.Metadata) }
func (m *MetadataPush) WriteTo(buf *bytebufferpool.ByteBuffer) {
	buf.Write(m.Metadata)
}

func decodeMetadataPush(flags Flags, b []byte) (*MetadataPush, error) {
	return &MetadataPush{Metadata: b}, nil
}

// Resume is the RESUME frame body. Never produced by this
// implementation's requester side; decoded only so a responder can
// recognize and reject it with RejectedResume.
type Resume struct {
	VersionMajor               uint16
	VersionMinor               uint16
	Token                      []byte
	LastReceivedServerPosition uint64
	FirstAvailableClientPosition uint64
}

func (Resume) Type() Type { return TypeResume }
func (r *Resume) Len() int {
	n := 4 + 2 + 8 + 8
	if r.Token != nil {
		n += len(r.Token)
	}
	return n
}
func (r *Resume) WriteTo(buf *bytebufferpool.ByteBuffer) {
	putU16(buf, r.VersionMajor)
	putU16(buf, r.VersionMinor)
	putU16(buf, uint16(len(r.Token)))
	if r.Token != nil {
		buf.Write(r.Token)
	}
	putU64(buf, r.LastReceivedServerPosition)
	putU64(buf, r.FirstAvailableClientPosition)
}

func decodeResume(flags Flags, b []byte) (*Resume, error) {
	if len(b) < 2+2+2 {
		return nil, rsocketerrors.IncompleteFrame()
	}
	major := uint16(b[0])<<8 | uint16(b[1])
	minor := uint16(b[2])<<8 | uint16(b[3])
	tokenLen := int(b[4])<<8 | int(b[5])
	b = b[6:]

	var token []byte
	if tokenLen > 0 {
		if len(b) < tokenLen {
			return nil, rsocketerrors.IncompleteFrame()
		}
		token = b[:tokenLen]
		b = b[tokenLen:]
	}

	if len(b) < 16 {
		return nil, rsocketerrors.IncompleteFrame()
	}
	var p1, p2 uint64
	for i := 0; i < 8; i++ {
		p1 = p1<<8 | uint64(b[i])
	}
	for i := 8; i < 16; i++ {
		p2 = p2<<8 | uint64(b[i])
	}

	return &Resume{
		VersionMajor:                 major,
		VersionMinor:                 minor,
		Token:                        token,
		LastReceivedServerPosition:   p1,
		FirstAvailableClientPosition: p2,
	}, nil
}

// ResumeOK is the RESUME_OK frame body.
type ResumeOK struct {
	Position uint64
}

func (ResumeOK) Type() Type { return TypeResumeOK }
func (r *ResumeOK) Len() int { return 8 }
func (r *ResumeOK) WriteTo(buf *bytebufferpool.ByteBuffer) { putU64(buf, r.Position) }

func decodeResumeOK(flags Flags, b []byte) (*ResumeOK, error) {
	if len(b) < 8 {
		return nil, rsocketerrors.IncompleteFrame()
	}
	var p uint64
	for i := 0; i < 8; i++ {
		p = p<<8 | uint64(b[i])
	}
	return &ResumeOK{Position: p}, nil
}
