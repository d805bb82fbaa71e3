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

// Package responder holds concrete duplex.Responder implementations
// shared across the CLI and examples: a baseline that refuses every
// interaction, a functional adapter for building one out of plain
// funcs, and a routing-metadata dispatcher. duplex owns its own
// unexported empty responder to avoid importing this package back.
package responder

import (
	"context"

	"github.com/packetd/rsocket/duplex"
	"github.com/packetd/rsocket/rsocketerrors"
)

// Empty rejects request/response, request/stream and request/channel
// with ApplicationException, and ignores metadata-push and
// fire-and-forget, which have no reply to carry an error. It is
// the exported counterpart of duplex's own fallback responder, for
// embedding in partial implementations that only override a subset of
// the five operations.
type Empty struct{}

func (Empty) MetadataPush(context.Context, []byte)   {}
func (Empty) FireAndForget(context.Context, duplex.Payload) {}

func (Empty) RequestResponse(context.Context, duplex.Payload) (duplex.Payload, error) {
	return duplex.Payload{}, rsocketerrors.ApplicationException("UNIMPLEMENTED")
}

func (Empty) RequestStream(context.Context, duplex.Payload) (<-chan duplex.Item, error) {
	return nil, rsocketerrors.ApplicationException("UNIMPLEMENTED")
}

func (Empty) RequestChannel(context.Context, duplex.Payload, <-chan duplex.Item) (<-chan duplex.Item, error) {
	return nil, rsocketerrors.ApplicationException("UNIMPLEMENTED")
}

var _ duplex.Responder = Empty{}

// Funcs adapts a set of plain functions into a duplex.Responder,
// falling back to Empty's UNIMPLEMENTED behavior for any operation
// left nil: the full capability set assembled from independently
// swappable pieces, the idiomatic Go shape being fields of function
// type rather than a struct per operation.
type Funcs struct {
	MetadataPushFunc    func(ctx context.Context, metadata []byte)
	FireAndForgetFunc   func(ctx context.Context, payload duplex.Payload)
	RequestResponseFunc func(ctx context.Context, payload duplex.Payload) (duplex.Payload, error)
	RequestStreamFunc   func(ctx context.Context, payload duplex.Payload) (<-chan duplex.Item, error)
	RequestChannelFunc  func(ctx context.Context, payload duplex.Payload, inbound <-chan duplex.Item) (<-chan duplex.Item, error)
}

func (f Funcs) MetadataPush(ctx context.Context, metadata []byte) {
	if f.MetadataPushFunc != nil {
		f.MetadataPushFunc(ctx, metadata)
	}
}

func (f Funcs) FireAndForget(ctx context.Context, payload duplex.Payload) {
	if f.FireAndForgetFunc != nil {
		f.FireAndForgetFunc(ctx, payload)
	}
}

func (f Funcs) RequestResponse(ctx context.Context, payload duplex.Payload) (duplex.Payload, error) {
	if f.RequestResponseFunc != nil {
		return f.RequestResponseFunc(ctx, payload)
	}
	return Empty{}.RequestResponse(ctx, payload)
}

func (f Funcs) RequestStream(ctx context.Context, payload duplex.Payload) (<-chan duplex.Item, error) {
	if f.RequestStreamFunc != nil {
		return f.RequestStreamFunc(ctx, payload)
	}
	return Empty{}.RequestStream(ctx, payload)
}

func (f Funcs) RequestChannel(ctx context.Context, payload duplex.Payload, inbound <-chan duplex.Item) (<-chan duplex.Item, error) {
	if f.RequestChannelFunc != nil {
		return f.RequestChannelFunc(ctx, payload, inbound)
	}
	return Empty{}.RequestChannel(ctx, payload, inbound)
}

var _ duplex.Responder = Funcs{}

// ClientResponder installs r on s unconditionally, the client-side
// counterpart of a server acceptor: a client that exposes a responder at
// all exposes the same one to every server it connects to. It's a thin
// naming wrapper over duplex.Socket.SetResponder so call sites read the
// same way whichever side they're wiring.
func ClientResponder(s *duplex.Socket, r duplex.Responder) {
	s.SetResponder(r)
}

// AcceptorFunc adapts build into a duplex.Acceptor: the server-side
// counterpart of ClientResponder, producing a fresh Responder per
// accepted connection once its SETUP arrives. Returning an error here
// rejects the connection with REJECTED_SETUP.
func AcceptorFunc(build func(setup duplex.SetupPayload, socket *duplex.Socket) (duplex.Responder, error)) duplex.Acceptor {
	return duplex.Acceptor(build)
}

// Static returns an Acceptor that always hands back the same Responder
// regardless of the negotiated SetupPayload, the common case for a
// server that doesn't vary its behavior per client.
func Static(r duplex.Responder) duplex.Acceptor {
	return func(duplex.SetupPayload, *duplex.Socket) (duplex.Responder, error) {
		return r, nil
	}
}
