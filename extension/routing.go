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

package extension

import "github.com/packetd/rsocket/rsocketerrors"

// MaxRoutingTagLen is the largest length a single routing tag's u8
// length prefix can carry.
const MaxRoutingTagLen = 0xFF

// RoutingMIME is the well-known MIME string composite metadata uses to
// tag a routing metadata entry.
const RoutingMIME = "message/x.rsocket.routing.v0"

// RoutingMetadata is an ordered list of route tags, used to carry a
// request's logical destination in the composite metadata's
// message/x.rsocket.routing.v0 entry.
type RoutingMetadata struct {
	Tags []string
}

// RoutingMetadataBuilder accumulates tags before producing an
// immutable RoutingMetadata.
type RoutingMetadataBuilder struct {
	tags []string
}

func NewRoutingMetadataBuilder() *RoutingMetadataBuilder {
	return &RoutingMetadataBuilder{}
}

func (b *RoutingMetadataBuilder) Push(tag string) *RoutingMetadataBuilder {
	if len(tag) > MaxRoutingTagLen {
		panic("extension: routing tag too long")
	}
	b.tags = append(b.tags, tag)
	return b
}

func (b *RoutingMetadataBuilder) Build() RoutingMetadata {
	return RoutingMetadata{Tags: b.tags}
}

// Encode serializes the tags as a sequence of u8 tag-len + tag-bytes.
func (r RoutingMetadata) Encode() []byte {
	out := make([]byte, 0, 16*len(r.Tags))
	for _, tag := range r.Tags {
		out = append(out, byte(len(tag)))
		out = append(out, tag...)
	}
	return out
}

// DecodeRouting parses a routing metadata section in full.
func DecodeRouting(b []byte) (RoutingMetadata, error) {
	bu := NewRoutingMetadataBuilder()
	for len(b) > 0 {
		size := int(b[0])
		b = b[1:]
		if len(b) < size {
			return RoutingMetadata{}, rsocketerrors.InvalidInputError("routing metadata: truncated tag")
		}
		bu.Push(string(b[:size]))
		b = b[size:]
	}
	return bu.Build(), nil
}
