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

// Package fragmentation splits outbound payloads into a chain of
// frames bounded by an MTU, and reassembles inbound chains back into
// one payload.
package fragmentation

import "github.com/packetd/rsocket/frame"

// MinMTU is the smallest MTU the fragmentation rules are sized for.
// Split does not enforce it: a smaller mtu is accepted, and the
// per-fragment budget is clamped to at least 4 bytes.
const MinMTU = 64

// Kind distinguishes which request type opens a fragmented sequence,
// since REQUEST_STREAM/REQUEST_CHANNEL carry a 4-byte initial-n prefix
// the others don't, and a response PAYLOAD carries neither.
type Kind int

const (
	KindRequestResponse Kind = iota
	KindRequestFNF
	KindRequestStream
	KindRequestChannel
	// KindResponsePayload is a request/response's single terminal
	// result: every fragment carries NEXT, only the last also carries
	// COMPLETE.
	KindResponsePayload
	// KindResponseItem is one item of a request/stream or
	// request/channel response: every fragment carries NEXT, none
	// carries COMPLETE — the stream's end is a separate, payload-less
	// COMPLETE frame.
	KindResponseItem
)

func fixedPrefix(kind Kind) int {
	if kind == KindRequestStream || kind == KindRequestChannel {
		return 4
	}
	return 0
}

// Split emits a followable frame sequence for an outbound payload:
// the first frame carries kind's request type (or is itself a
// response PAYLOAD) with FOLLOW set whenever more than one frame is
// needed; every subsequent fragment is a PAYLOAD frame with FOLLOW
// set except the last. Metadata is exhausted before data begins; a
// fragment that fills up on metadata alone carries no data.
func Split(streamID uint32, mtu int, kind Kind, initialN uint32, metadata, data []byte) []*frame.Frame {
	budget := mtu - 6 - fixedPrefix(kind)
	if budget < 4 {
		budget = 4
	}

	parts := chunkPayload(budget, metadata, data)
	if len(parts) == 0 {
		parts = append(parts, part{})
	}

	frames := make([]*frame.Frame, 0, len(parts))
	multi := len(parts) > 1

	first := buildFirst(streamID, kind, initialN, parts[0].metadata, parts[0].data)
	if multi {
		first.Flags |= frame.FlagFollow
	} else if kind == KindResponsePayload {
		first.Flags |= frame.FlagComplete
	}
	frames = append(frames, first)

	for i := 1; i < len(parts); i++ {
		last := i == len(parts)-1
		p := parts[i]
		next, complete := false, false
		switch kind {
		case KindResponsePayload:
			next = true
			complete = last
		case KindResponseItem:
			next = true
		}
		pf := frame.NewPayload(streamID, p.metadata, p.data, next, complete)
		if !last {
			pf.Flags |= frame.FlagFollow
		}
		frames = append(frames, pf)
	}
	return frames
}

func buildFirst(streamID uint32, kind Kind, initialN uint32, metadata, data []byte) *frame.Frame {
	switch kind {
	case KindRequestResponse:
		return frame.NewRequestResponse(streamID, metadata, data)
	case KindRequestFNF:
		return frame.NewRequestFNF(streamID, metadata, data)
	case KindRequestStream:
		return frame.NewRequestStream(streamID, initialN, metadata, data)
	case KindRequestChannel:
		return frame.NewRequestChannel(streamID, initialN, metadata, data)
	case KindResponseItem:
		return frame.NewPayload(streamID, metadata, data, true, false)
	default: // KindResponsePayload
		return frame.NewPayload(streamID, metadata, data, true, false)
	}
}

type part struct {
	metadata []byte
	data     []byte
}

// chunkPayload slices metadata into budget-sized (minus the u24
// length prefix) pieces, then data into budget-sized pieces. A
// metadata tail that leaves room in its own fragment is topped up
// with the first data bytes; only a fragment that metadata fills
// completely carries no data.
func chunkPayload(budget int, metadata, data []byte) []part {
	var parts []part

	metaBudget := budget - 3
	if metaBudget < 1 {
		metaBudget = 1
	}
	for len(metadata) > 0 {
		n := metaBudget
		if n > len(metadata) {
			n = len(metadata)
		}
		parts = append(parts, part{metadata: metadata[:n]})
		metadata = metadata[n:]
	}

	if len(parts) > 0 && len(data) > 0 {
		last := &parts[len(parts)-1]
		if room := budget - 3 - len(last.metadata); room > 0 {
			if room > len(data) {
				room = len(data)
			}
			last.data = data[:room]
			data = data[room:]
		}
	}

	for len(data) > 0 {
		n := budget
		if n > len(data) {
			n = len(data)
		}
		parts = append(parts, part{data: data[:n]})
		data = data[n:]
	}

	return parts
}

// Joiner reassembles a chain of FOLLOW-linked frames for one
// stream-id into a single logical payload.
type Joiner struct {
	frames []*frame.Frame
}

// NewJoiner starts a reassembly with the opening frame of a chain.
// Callers must only create a Joiner when that frame has FOLLOW set.
func NewJoiner(opening *frame.Frame) *Joiner {
	return &Joiner{frames: []*frame.Frame{opening}}
}

// Append adds the next frame in the chain. Once f lacks FOLLOW it
// returns the reassembled metadata, data and effective flags (the
// first frame's flags, minus FOLLOW) with ok=true; otherwise it
// buffers f and returns ok=false.
func (j *Joiner) Append(f *frame.Frame) (metadata, data []byte, flags frame.Flags, ok bool) {
	j.frames = append(j.frames, f)
	if f.HasFollow() {
		return nil, nil, 0, false
	}
	return j.join()
}

// Type reports the frame type that opened this reassembly, so a
// caller can rebuild the right kind of logical request once Append
// returns ok=true.
func (j *Joiner) Type() frame.Type { return j.frames[0].Body.Type() }

// InitialRequestN reports the opening frame's initial-request-n for
// REQUEST_STREAM/REQUEST_CHANNEL chains, 0 for every other kind.
func (j *Joiner) InitialRequestN() uint32 {
	switch b := j.frames[0].Body.(type) {
	case *frame.RequestStream:
		return b.InitialRequestN
	case *frame.RequestChannel:
		return b.InitialRequestN
	default:
		return 0
	}
}

func (j *Joiner) join() ([]byte, []byte, frame.Flags, bool) {
	var metadata, data []byte
	for _, f := range j.frames {
		m, d := fragmentBytes(f)
		metadata = append(metadata, m...)
		data = append(data, d...)
	}
	flags := j.frames[0].Flags &^ frame.FlagFollow
	return metadata, data, flags, true
}

func fragmentBytes(f *frame.Frame) (metadata, data []byte) {
	switch b := f.Body.(type) {
	case *frame.RequestResponse:
		return b.Metadata, b.Data
	case *frame.RequestFNF:
		return b.Metadata, b.Data
	case *frame.RequestStream:
		return b.Metadata, b.Data
	case *frame.RequestChannel:
		return b.Metadata, b.Data
	case *frame.Payload:
		return b.Metadata, b.Data
	default:
		return nil, nil
	}
}
