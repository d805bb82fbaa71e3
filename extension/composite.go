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

// Package extension decodes and encodes the two metadata extensions
// layered on top of the frame codec: composite metadata (a sequence of
// mime-tagged sub-payloads) and routing metadata (a sequence of
// length-prefixed route tags).
package extension

import (
	"github.com/packetd/rsocket/mime"
	"github.com/packetd/rsocket/rsocketerrors"
)

// MaxMIMELen is the largest inline MIME string length a composite
// metadata header can carry: the header byte stores len-1 with its
// top bit clear, so lengths 1..128 are representable.
const MaxMIMELen = 128

// CompositeMetadataEntry is one mime-tagged sub-payload within a
// COMPOSITE_METADATA-framed metadata section.
type CompositeMetadataEntry struct {
	MIME    string
	Payload []byte
}

// NewCompositeMetadataEntry builds an entry, panicking if mime or
// payload exceed their wire-representable lengths, since both are
// programmer errors, not runtime conditions.
func NewCompositeMetadataEntry(m string, payload []byte) CompositeMetadataEntry {
	if _, wellKnown := mime.Lookup(m); !wellKnown && (len(m) == 0 || len(m) > MaxMIMELen) {
		panic("extension: MIME type length out of range")
	}
	if len(payload) > 0xFFFFFF {
		panic("extension: composite metadata payload too long")
	}
	return CompositeMetadataEntry{MIME: m, Payload: payload}
}

// EncodeComposite serializes entries in order, concatenating each
// entry's mime-header, u24 payload length, and payload bytes.
func EncodeComposite(entries []CompositeMetadataEntry) []byte {
	out := make([]byte, 0, 64*len(entries))
	for _, e := range entries {
		out = appendCompositeEntry(out, e)
	}
	return out
}

func appendCompositeEntry(out []byte, e CompositeMetadataEntry) []byte {
	if id, ok := mime.Lookup(e.MIME); ok {
		out = append(out, mime.WellKnownBit|byte(id))
	} else {
		// top bit clear, value is len-1; lengths 1..MaxMIMELen fit
		// without colliding with the well-known tag
		out = append(out, byte(len(e.MIME)-1))
		out = append(out, e.MIME...)
	}
	n := len(e.Payload)
	out = append(out, byte(n>>16), byte(n>>8), byte(n))
	out = append(out, e.Payload...)
	return out
}

// DecodeComposite parses every entry out of a composite metadata
// section. It returns rsocketerrors.InvalidInputError when the bytes
// are truncated mid-entry.
func DecodeComposite(b []byte) ([]CompositeMetadataEntry, error) {
	var entries []CompositeMetadataEntry
	for len(b) > 0 {
		entry, rest, err := decodeCompositeOnce(b)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		b = rest
	}
	return entries, nil
}

func decodeCompositeOnce(b []byte) (CompositeMetadataEntry, []byte, error) {
	first := b[0]
	b = b[1:]

	var m string
	if first&mime.WellKnownBit != 0 {
		id := mime.ID(first &^ mime.WellKnownBit)
		resolved, ok := mime.String(id)
		if !ok {
			return CompositeMetadataEntry{}, nil, rsocketerrors.InvalidInputError("composite metadata: unknown well-known MIME id")
		}
		m = resolved
	} else {
		mimeLen := int(first) + 1
		if len(b) < mimeLen {
			return CompositeMetadataEntry{}, nil, rsocketerrors.InvalidInputError("composite metadata: truncated MIME string")
		}
		m = string(b[:mimeLen])
		b = b[mimeLen:]
	}

	if len(b) < 3 {
		return CompositeMetadataEntry{}, nil, rsocketerrors.InvalidInputError("composite metadata: truncated payload length")
	}
	payloadLen := int(b[0])<<16 | int(b[1])<<8 | int(b[2])
	b = b[3:]
	if len(b) < payloadLen {
		return CompositeMetadataEntry{}, nil, rsocketerrors.InvalidInputError("composite metadata: truncated payload")
	}
	payload := b[:payloadLen]
	b = b[payloadLen:]

	return CompositeMetadataEntry{MIME: m, Payload: payload}, b, nil
}
