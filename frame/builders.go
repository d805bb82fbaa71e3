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

import "time"

// SetupBuilder accumulates SETUP frame fields. NewSetupBuilder
// pre-fills the protocol defaults (version 1.0, 30s keepalive tick,
// 90s lifetime, application/binary MIME); Build applies no defaults
// of its own, so a zero-value SetupBuilder builds an all-zero SETUP.
type SetupBuilder struct {
	streamID uint32
	setup    Setup
}

func NewSetupBuilder(streamID uint32) *SetupBuilder {
	return &SetupBuilder{
		streamID: streamID,
		setup: Setup{
			VersionMajor: 1,
			VersionMinor: 0,
			KeepaliveMS:  30_000,
			LifetimeMS:   90_000,
			MIMEMetadata: DefaultMIMEType,
			MIMEData:     DefaultMIMEType,
		},
	}
}

func (b *SetupBuilder) Version(major, minor uint16) *SetupBuilder {
	b.setup.VersionMajor, b.setup.VersionMinor = major, minor
	return b
}

func (b *SetupBuilder) Keepalive(d time.Duration) *SetupBuilder {
	b.setup.KeepaliveMS = uint32(d.Milliseconds())
	return b
}

func (b *SetupBuilder) Lifetime(d time.Duration) *SetupBuilder {
	b.setup.LifetimeMS = uint32(d.Milliseconds())
	return b
}

func (b *SetupBuilder) Token(token []byte) *SetupBuilder {
	b.setup.Token = token
	return b
}

func (b *SetupBuilder) MIMEMetadata(mime string) *SetupBuilder {
	if len(mime) == 0 || len(mime) > 256 {
		panic("frame: SETUP mime-metadata string length out of range")
	}
	b.setup.MIMEMetadata = mime
	return b
}

func (b *SetupBuilder) MIMEData(mime string) *SetupBuilder {
	if len(mime) == 0 || len(mime) > 256 {
		panic("frame: SETUP mime-data string length out of range")
	}
	b.setup.MIMEData = mime
	return b
}

func (b *SetupBuilder) Data(data []byte) *SetupBuilder {
	b.setup.Data = data
	return b
}

func (b *SetupBuilder) Metadata(metadata []byte) *SetupBuilder {
	b.setup.Metadata = metadata
	return b
}

func (b *SetupBuilder) Build() *Frame {
	flags := Flags(0)
	if b.setup.Token != nil {
		flags |= FlagResume
	}
	if b.setup.Metadata != nil {
		flags |= FlagMetadata
	}
	return New(b.streamID, flags, &b.setup)
}

// NewKeepalive builds a KEEPALIVE frame. respond controls FLAG_RESPOND
// (FOLLOW bit), which asks the peer to echo it back.
func NewKeepalive(streamID uint32, data []byte, respond bool) *Frame {
	flags := Flags(0)
	if respond {
		flags |= FlagRespond
	}
	return New(streamID, flags, &Keepalive{Data: data})
}

func payloadFlags(metadata []byte) Flags {
	if metadata != nil {
		return FlagMetadata
	}
	return 0
}

// NewPayload builds a PAYLOAD frame; next and complete set the NEXT
// and COMPLETE flags respectively.
func NewPayload(streamID uint32, metadata, data []byte, next, complete bool) *Frame {
	flags := payloadFlags(metadata)
	if next {
		flags |= FlagNext
	}
	if complete {
		flags |= FlagComplete
	}
	return New(streamID, flags, &Payload{Metadata: metadata, Data: data})
}

// NewRequestResponse builds a REQUEST_RESPONSE frame.
func NewRequestResponse(streamID uint32, metadata, data []byte) *Frame {
	return New(streamID, payloadFlags(metadata), &RequestResponse{Metadata: metadata, Data: data})
}

// NewRequestFNF builds a REQUEST_FNF frame.
func NewRequestFNF(streamID uint32, metadata, data []byte) *Frame {
	return New(streamID, payloadFlags(metadata), &RequestFNF{Metadata: metadata, Data: data})
}

// NewRequestStream builds a REQUEST_STREAM frame. initialN of 0 is
// replaced with RequestMax, mirroring the protocol default.
func NewRequestStream(streamID uint32, initialN uint32, metadata, data []byte) *Frame {
	if initialN == 0 {
		initialN = RequestMax
	}
	return New(streamID, payloadFlags(metadata), &RequestStream{
		InitialRequestN: initialN,
		Metadata:        metadata,
		Data:            data,
	})
}

// NewRequestChannel builds a REQUEST_CHANNEL frame.
func NewRequestChannel(streamID uint32, initialN uint32, metadata, data []byte) *Frame {
	if initialN == 0 {
		initialN = RequestMax
	}
	return New(streamID, payloadFlags(metadata), &RequestChannel{
		InitialRequestN: initialN,
		Metadata:        metadata,
		Data:            data,
	})
}

// NewRequestN builds a REQUEST_N frame.
func NewRequestN(streamID uint32, n uint32) *Frame {
	return New(streamID, 0, &RequestN{N: n})
}

// NewCancel builds a CANCEL frame.
func NewCancel(streamID uint32) *Frame {
	return New(streamID, 0, &Cancel{})
}

// NewError builds an ERROR frame from a wire code and optional
// description bytes.
func NewError(streamID uint32, code uint32, data []byte) *Frame {
	return New(streamID, 0, &Error{Code: code, Data: data})
}

// NewMetadataPush builds a METADATA_PUSH frame. Always addressed to
// stream id 0.
func NewMetadataPush(metadata []byte) *Frame {
	return New(0, FlagMetadata, &MetadataPush{Metadata: metadata})
}

// NewResumeOK builds a RESUME_OK frame.
func NewResumeOK(streamID uint32, position uint64) *Frame {
	return New(streamID, 0, &ResumeOK{Position: position})
}
