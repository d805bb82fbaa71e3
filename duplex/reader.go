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
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/packetd/rsocket/fragmentation"
	"github.com/packetd/rsocket/frame"
	"github.com/packetd/rsocket/internal/pubsub"
	"github.com/packetd/rsocket/registry"
	"github.com/packetd/rsocket/rsocketerrors"
	"github.com/packetd/rsocket/transport"
)

// endOfChannel marks a clean end of a responder-side channel's inbound
// half in its delivery queue, distinguishing "no more items" from an
// ordinary PopTimeout timeout.
type endOfChannel struct{}

func (s *Socket) readLoop(ctx context.Context, stream transport.FrameStream) {
	for {
		f, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.closeWith(nil)
			} else {
				s.closeWith(err)
			}
			return
		}
		incFramesReceived(f.Type())

		rf, ready := s.reassemble(f)
		if !ready {
			continue
		}
		s.dispatch(ctx, rf)
	}
}

// reassemble folds f into any in-progress fragment chain for its
// stream id. Non-followable types and unfragmented single frames pass
// straight through.
func (s *Socket) reassemble(f *frame.Frame) (*frame.Frame, bool) {
	if j, ok := s.joiners[f.StreamID]; ok {
		metadata, data, flags, done := j.Append(f)
		if !done {
			return nil, false
		}
		delete(s.joiners, f.StreamID)
		fragmentReassembliesInFlight.Dec()
		return rebuildFrame(j.Type(), f.StreamID, flags, j.InitialRequestN(), metadata, data), true
	}

	if followable, _ := f.IsFollowable(); followable && f.HasFollow() {
		s.joiners[f.StreamID] = fragmentation.NewJoiner(f)
		fragmentReassembliesInFlight.Inc()
		return nil, false
	}
	return f, true
}

func rebuildFrame(t frame.Type, streamID uint32, flags frame.Flags, initialN uint32, metadata, data []byte) *frame.Frame {
	switch t {
	case frame.TypeRequestResponse:
		return frame.New(streamID, flags, &frame.RequestResponse{Metadata: metadata, Data: data})
	case frame.TypeRequestFNF:
		return frame.New(streamID, flags, &frame.RequestFNF{Metadata: metadata, Data: data})
	case frame.TypeRequestStream:
		return frame.New(streamID, flags, &frame.RequestStream{InitialRequestN: initialN, Metadata: metadata, Data: data})
	case frame.TypeRequestChannel:
		return frame.New(streamID, flags, &frame.RequestChannel{InitialRequestN: initialN, Metadata: metadata, Data: data})
	default: // frame.TypePayload
		return frame.New(streamID, flags, &frame.Payload{Metadata: metadata, Data: data})
	}
}

func (s *Socket) dispatch(ctx context.Context, f *frame.Frame) {
	if _, isSetup := f.Body.(*frame.Setup); !isSetup && s.isServer && !s.setupDone.Load() {
		err := rsocketerrors.RejectedSetup("SETUP must be the first frame")
		s.enqueue(frame.NewError(0, uint32(err.Code), []byte(err.Description)))
		s.closeWith(err)
		return
	}

	switch body := f.Body.(type) {
	case *frame.Setup:
		s.dispatchSetup(body)
	case *frame.Lease:
		// lease credit isn't tracked; see DESIGN.md's open-question note.
	case *frame.Keepalive:
		s.dispatchKeepalive(f, body)
	case *frame.MetadataPush:
		s.dispatchMetadataPush(ctx, body)
	case *frame.RequestFNF:
		s.dispatchRequestFNF(ctx, body)
	case *frame.RequestResponse:
		s.dispatchRequestResponse(ctx, f, body)
	case *frame.RequestStream:
		s.dispatchRequestStream(ctx, f, body)
	case *frame.RequestChannel:
		s.dispatchRequestChannel(ctx, f, body)
	case *frame.RequestN:
		// backpressure isn't implemented; requesters grant RequestMax
		// upfront, so there's no credit to apply this toward.
	case *frame.Cancel:
		s.dispatchCancel(f.StreamID)
	case *frame.Payload:
		s.dispatchPayload(f, body)
	case *frame.Error:
		s.dispatchError(f, body)
	case *frame.Resume:
		s.dispatchResume()
	case *frame.ResumeOK:
		// this implementation never sends RESUME, so one arriving here
		// would be a misbehaving peer; nothing to resume either way.
	}
}

func (s *Socket) dispatchSetup(b *frame.Setup) {
	if s.setupDone.Load() {
		s.closeWith(rsocketerrors.InvalidSetup("duplicate SETUP"))
		return
	}

	setup := SetupPayload{
		VersionMajor: b.VersionMajor,
		VersionMinor: b.VersionMinor,
		Keepalive:    time.Duration(b.KeepaliveMS) * time.Millisecond,
		Lifetime:     time.Duration(b.LifetimeMS) * time.Millisecond,
		Token:        b.Token,
		MetadataMIME: b.MIMEMetadata,
		DataMIME:     b.MIMEData,
		Payload:      Payload{Metadata: b.Metadata, Data: b.Data},
	}

	reject := func(err *rsocketerrors.RSocketError) {
		setupRejections.Inc()
		s.enqueue(frame.NewError(0, uint32(err.Code), []byte(err.Description)))
		s.closeWith(err)
	}

	if b.Token != nil {
		reject(rsocketerrors.RejectedResume("resumption not supported"))
		return
	}
	if s.acceptor == nil {
		reject(rsocketerrors.RejectedSetup("no acceptor configured"))
		return
	}
	responder, err := s.acceptor(setup, s)
	if err != nil {
		reject(rsocketerrors.RejectedSetup(err.Error()))
		return
	}

	s.keepalive, s.lifetime = setup.Keepalive, setup.Lifetime
	s.SetResponder(responder)
	s.setupDone.Store(true)
}

func (s *Socket) dispatchKeepalive(f *frame.Frame, b *frame.Keepalive) {
	if f.Flags.Has(frame.FlagRespond) {
		s.enqueue(frame.NewKeepalive(0, b.Data, false))
		return
	}
	s.lastAckAt.Store(time.Now().UnixNano())
	keepaliveRoundtrips.Inc()
}

func (s *Socket) dispatchMetadataPush(ctx context.Context, b *frame.MetadataPush) {
	go func() {
		_ = invokeRecover(func() error {
			s.Responder().MetadataPush(ctx, b.Metadata)
			return nil
		})
	}()
}

func (s *Socket) dispatchRequestFNF(ctx context.Context, b *frame.RequestFNF) {
	payload := Payload{Metadata: b.Metadata, Data: b.Data}
	go func() {
		_ = invokeRecover(func() error {
			s.Responder().FireAndForget(ctx, payload)
			return nil
		})
	}()
}

func (s *Socket) dispatchRequestResponse(ctx context.Context, f *frame.Frame, b *frame.RequestResponse) {
	streamID := f.StreamID
	counter := new(int32)
	*counter = 2
	s.reg.Insert(streamID, &registry.Entry{Kind: registry.KindResponding, Counter: counter})
	payload := Payload{Metadata: b.Metadata, Data: b.Data}
	go s.serveRequestResponse(ctx, streamID, payload)
}

func (s *Socket) serveRequestResponse(ctx context.Context, streamID uint32, payload Payload) {
	var result Payload
	err := invokeRecover(func() error {
		var e error
		result, e = s.Responder().RequestResponse(ctx, payload)
		return e
	})

	entry, ok := s.reg.Get(streamID)
	if !ok {
		// the entry is already gone: the connection closed or the
		// peer sent ERROR for this stream.
		return
	}
	s.reg.Remove(streamID)
	if atomic.AddInt32(entry.Counter, -1) == 0 {
		// a CANCEL already counted down: drop the result.
		return
	}
	if err != nil {
		s.sendError(streamID, err)
	} else {
		s.enqueueRequest(streamID, fragmentation.KindResponsePayload, 0, result)
	}
}

func (s *Socket) dispatchRequestStream(ctx context.Context, f *frame.Frame, b *frame.RequestStream) {
	streamID := f.StreamID
	sctx, cancel := context.WithCancel(ctx)
	s.reg.Insert(streamID, &registry.Entry{Kind: registry.KindResponding, Cancel: cancel})
	payload := Payload{Metadata: b.Metadata, Data: b.Data}
	go s.serveRequestStream(sctx, streamID, payload)
}

func (s *Socket) serveRequestStream(ctx context.Context, streamID uint32, payload Payload) {
	var items <-chan Item
	err := invokeRecover(func() error {
		var e error
		items, e = s.Responder().RequestStream(ctx, payload)
		return e
	})
	if err != nil {
		s.sendError(streamID, err)
		s.reg.Remove(streamID)
		return
	}
	s.pumpResponderItems(streamID, items)
}

func (s *Socket) dispatchRequestChannel(ctx context.Context, f *frame.Frame, b *frame.RequestChannel) {
	streamID := f.StreamID
	sctx, cancel := context.WithCancel(ctx)
	q := pubsub.NewQueue()
	s.reg.Insert(streamID, &registry.Entry{Kind: registry.KindResponding, Cancel: cancel, Queue: q})

	inbound := make(chan Item)
	go pumpQueueToChan(sctx, q, inbound)

	payload := Payload{Metadata: b.Metadata, Data: b.Data}
	go s.serveRequestChannel(sctx, streamID, payload, inbound)
}

func (s *Socket) serveRequestChannel(ctx context.Context, streamID uint32, payload Payload, inbound <-chan Item) {
	var items <-chan Item
	err := invokeRecover(func() error {
		var e error
		items, e = s.Responder().RequestChannel(ctx, payload, inbound)
		return e
	})
	if err != nil {
		s.sendError(streamID, err)
		s.reg.Remove(streamID)
		return
	}
	s.pumpResponderItems(streamID, items)
}

// pumpResponderItems drains a responder's outbound item stream onto
// the wire: every item becomes a NEXT PAYLOAD, and a clean close
// becomes a bare terminal COMPLETE frame with no payload of its own.
func (s *Socket) pumpResponderItems(streamID uint32, items <-chan Item) {
	defer s.reg.Remove(streamID)
	for item := range items {
		select {
		case <-s.closed:
			return
		default:
		}
		if item.Err != nil {
			s.sendError(streamID, item.Err)
			return
		}
		s.enqueueRequest(streamID, fragmentation.KindResponseItem, 0, item.Payload)
	}
	s.enqueue(frame.NewPayload(streamID, nil, nil, false, true))
}

// pumpQueueToChan bridges a pubsub.Queue fed by the reader loop into
// the plain Go channel a Responder's RequestChannel expects, stopping
// on endOfChannel, a terminal error Item, or ctx cancellation.
func pumpQueueToChan(ctx context.Context, q pubsub.Queue, out chan<- Item) {
	defer close(out)
	for {
		v, ok := q.PopTimeout(defaultPollInterval)
		if !ok {
			select {
			case <-ctx.Done():
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
			return
		}
		if item.Err != nil {
			return
		}
	}
}

func (s *Socket) dispatchCancel(streamID uint32) {
	entry, ok := s.reg.Get(streamID)
	if !ok || entry.Kind != registry.KindResponding {
		return
	}
	if entry.Counter != nil {
		if atomic.AddInt32(entry.Counter, -1) == 0 {
			s.reg.Remove(streamID)
		}
		return
	}
	if entry.Cancel != nil {
		entry.Cancel()
	}
	s.reg.Remove(streamID)
}

func (s *Socket) dispatchPayload(f *frame.Frame, b *frame.Payload) {
	entry, ok := s.reg.Get(f.StreamID)
	if !ok {
		return
	}
	payload := Payload{Metadata: b.Metadata, Data: b.Data}

	switch entry.Kind {
	case registry.KindAwaitResponse:
		s.reg.Remove(f.StreamID)
		if entry.ResponseCh != nil {
			select {
			case entry.ResponseCh <- registry.Result{Metadata: b.Metadata, Data: b.Data}:
			default:
			}
		}
	case registry.KindAwaitStream:
		if entry.Queue != nil && f.HasNext() {
			entry.Queue.Push(Item{Payload: payload})
		}
		if f.HasComplete() {
			s.reg.Remove(f.StreamID)
			if entry.Queue != nil {
				entry.Queue.Push(endOfChannel{})
				entry.Queue.Close()
			}
		}
	case registry.KindResponding:
		if entry.Queue != nil {
			if f.HasNext() {
				entry.Queue.Push(Item{Payload: payload})
			}
			if f.HasComplete() {
				entry.Queue.Push(endOfChannel{})
				entry.Queue.Close()
			}
		}
	}
}

func (s *Socket) dispatchError(f *frame.Frame, b *frame.Error) {
	err := rsocketerrors.FromWireCode(rsocketerrors.Code(b.Code), string(b.Data))
	if f.StreamID == 0 {
		s.closeWith(err)
		return
	}

	entry, ok := s.reg.Take(f.StreamID)
	if !ok {
		return
	}
	switch entry.Kind {
	case registry.KindAwaitResponse:
		if entry.ResponseCh != nil {
			select {
			case entry.ResponseCh <- registry.Result{Err: err}:
			default:
			}
		}
	case registry.KindAwaitStream:
		if entry.Queue != nil {
			entry.Queue.Push(Item{Err: err})
			entry.Queue.Close()
		}
	case registry.KindResponding:
		if entry.Queue != nil {
			entry.Queue.Push(Item{Err: err})
			entry.Queue.Close()
		}
		if entry.Cancel != nil {
			entry.Cancel()
		}
	}
}

func (s *Socket) dispatchResume() {
	err := rsocketerrors.RejectedResume("resumption not supported")
	s.enqueue(frame.NewError(0, uint32(err.Code), []byte(err.Description)))
	s.closeWith(err)
}

func (s *Socket) sendError(streamID uint32, err error) {
	var re *rsocketerrors.RSocketError
	if !errors.As(err, &re) {
		re = rsocketerrors.ApplicationException(err.Error())
	}
	s.enqueue(frame.NewError(streamID, uint32(re.Code), []byte(re.Description)))
}
