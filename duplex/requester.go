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

package duplex

import (
	"context"

	"github.com/packetd/rsocket/fragmentation"
	"github.com/packetd/rsocket/frame"
	"github.com/packetd/rsocket/internal/pubsub"
	"github.com/packetd/rsocket/registry"
	"github.com/packetd/rsocket/rsocketerrors"
)

func (s *Socket) closedErr() error {
	select {
	case <-s.closed:
		return rsocketerrors.ConnectionClosed("connection closed")
	default:
		return nil
	}
}

// MetadataPush sends connection-level metadata with no associated
// stream and no response.
func (s *Socket) MetadataPush(ctx context.Context, metadata []byte) error {
	if err := s.closedErr(); err != nil {
		return err
	}
	s.enqueue(frame.NewMetadataPush(metadata))
	return nil
}

// FireAndForget sends payload with no expectation of any response.
func (s *Socket) FireAndForget(ctx context.Context, payload Payload) error {
	if err := s.closedErr(); err != nil {
		return err
	}
	id := s.ids.Next()
	s.enqueueRequest(id, fragmentation.KindRequestFNF, 0, payload)
	return nil
}

// RequestResponse sends payload and blocks for exactly one result, an
// error, ctx cancellation (which sends CANCEL upstream), or the
// connection closing.
func (s *Socket) RequestResponse(ctx context.Context, payload Payload) (Payload, error) {
	if err := s.closedErr(); err != nil {
		return Payload{}, err
	}

	id := s.ids.Next()
	respCh := make(chan registry.Result, 1)
	s.reg.Insert(id, &registry.Entry{Kind: registry.KindAwaitResponse, ResponseCh: respCh})
	s.enqueueRequest(id, fragmentation.KindRequestResponse, 0, payload)

	select {
	case res := <-respCh:
		if res.Err != nil {
			return Payload{}, res.Err
		}
		return Payload{Metadata: res.Metadata, Data: res.Data}, nil
	case <-ctx.Done():
		s.cancelStream(id)
		return Payload{}, ctx.Err()
	case <-s.closed:
		return Payload{}, rsocketerrors.ConnectionClosed("connection closed")
	}
}

// RequestStream sends payload and returns a channel of every item the
// responder produces, closed once the stream completes, errors, ctx
// is cancelled, or the connection closes.
func (s *Socket) RequestStream(ctx context.Context, payload Payload) (<-chan Item, error) {
	if err := s.closedErr(); err != nil {
		return nil, err
	}

	id := s.ids.Next()
	q := pubsub.NewQueue()
	s.reg.Insert(id, &registry.Entry{Kind: registry.KindAwaitStream, Queue: q})
	s.enqueueRequest(id, fragmentation.KindRequestStream, frame.RequestMax, payload)

	out := make(chan Item)
	go s.pumpAwaitStream(ctx, id, q, out)
	return out, nil
}

// RequestChannel opens a bidirectional stream: outbound is drained
// onto the wire as this side's items, and the returned channel
// delivers the peer's. Closing outbound without sending an Item.Err
// completes this side's half cleanly.
func (s *Socket) RequestChannel(ctx context.Context, payload Payload, outbound <-chan Item) (<-chan Item, error) {
	if err := s.closedErr(); err != nil {
		return nil, err
	}

	id := s.ids.Next()
	q := pubsub.NewQueue()
	s.reg.Insert(id, &registry.Entry{Kind: registry.KindAwaitStream, Queue: q})
	s.enqueueRequest(id, fragmentation.KindRequestChannel, frame.RequestMax, payload)

	in := make(chan Item)
	go s.pumpAwaitStream(ctx, id, q, in)
	go s.pumpChannelOutbound(ctx, id, outbound)
	return in, nil
}

// pumpAwaitStream delivers a requester-side AwaitStream entry's queued
// items onto out, sending CANCEL and tearing the entry down if ctx is
// cancelled before the peer completes it.
func (s *Socket) pumpAwaitStream(ctx context.Context, streamID uint32, q pubsub.Queue, out chan<- Item) {
	defer close(out)
	defer s.reg.Remove(streamID)

	for {
		v, ok := q.PopTimeout(defaultPollInterval)
		if !ok {
			select {
			case <-ctx.Done():
				s.cancelStream(streamID)
				return
			case <-s.closed:
				return
			default:
				continue
			}
		}

		if _, end := v.(endOfChannel); end {
			return
		}
		item := v.(Item)
		select {
		case out <- item:
		case <-ctx.Done():
			s.cancelStream(streamID)
			return
		}
		if item.Err != nil {
			return
		}
	}
}

// pumpChannelOutbound drains a requester's outbound half of a
// request/channel onto the wire.
func (s *Socket) pumpChannelOutbound(ctx context.Context, streamID uint32, outbound <-chan Item) {
	for {
		select {
		case item, ok := <-outbound:
			if !ok {
				s.enqueue(frame.NewPayload(streamID, nil, nil, false, true))
				return
			}
			if item.Err != nil {
				s.sendError(streamID, item.Err)
				return
			}
			s.enqueueRequest(streamID, fragmentation.KindResponseItem, 0, item.Payload)
		case <-ctx.Done():
			s.cancelStream(streamID)
			return
		case <-s.closed:
			return
		}
	}
}
