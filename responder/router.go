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

package responder

import (
	"context"
	"sync"

	"github.com/packetd/rsocket/duplex"
	"github.com/packetd/rsocket/extension"
	"github.com/packetd/rsocket/rsocketerrors"
)

// Router dispatches each interaction to a sub-Responder chosen by the
// first tag of the request's routing metadata, decoded from a
// composite-metadata entry tagged extension.RoutingMIME. Unrouted or
// unroutable requests fail with RequestInvalid/RequestRejected rather
// than falling through to a default handler.
type Router struct {
	mut    sync.RWMutex
	routes map[string]duplex.Responder
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]duplex.Responder)}
}

// Handle registers h for route, replacing any prior handler, and
// returns the Router for chaining.
func (r *Router) Handle(route string, h duplex.Responder) *Router {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.routes[route] = h
	return r
}

func (r *Router) resolve(metadata []byte) (duplex.Responder, error) {
	if len(metadata) == 0 {
		return nil, rsocketerrors.RequestInvalid("router: request carries no metadata")
	}
	entries, err := extension.DecodeComposite(metadata)
	if err != nil {
		return nil, rsocketerrors.RequestInvalid("router: " + err.Error())
	}
	for _, e := range entries {
		if e.MIME != extension.RoutingMIME {
			continue
		}
		routing, err := extension.DecodeRouting(e.Payload)
		if err != nil {
			return nil, rsocketerrors.RequestInvalid("router: " + err.Error())
		}
		if len(routing.Tags) == 0 {
			continue
		}
		route := routing.Tags[0]
		r.mut.RLock()
		h, ok := r.routes[route]
		r.mut.RUnlock()
		if !ok {
			return nil, rsocketerrors.RequestRejected("router: no handler for route " + route)
		}
		return h, nil
	}
	return nil, rsocketerrors.RequestInvalid("router: no routing metadata entry present")
}

func (r *Router) MetadataPush(ctx context.Context, metadata []byte) {
	if h, err := r.resolve(metadata); err == nil {
		h.MetadataPush(ctx, metadata)
	}
}

func (r *Router) FireAndForget(ctx context.Context, payload duplex.Payload) {
	if h, err := r.resolve(payload.Metadata); err == nil {
		h.FireAndForget(ctx, payload)
	}
}

func (r *Router) RequestResponse(ctx context.Context, payload duplex.Payload) (duplex.Payload, error) {
	h, err := r.resolve(payload.Metadata)
	if err != nil {
		return duplex.Payload{}, err
	}
	return h.RequestResponse(ctx, payload)
}

func (r *Router) RequestStream(ctx context.Context, payload duplex.Payload) (<-chan duplex.Item, error) {
	h, err := r.resolve(payload.Metadata)
	if err != nil {
		return nil, err
	}
	return h.RequestStream(ctx, payload)
}

func (r *Router) RequestChannel(ctx context.Context, payload duplex.Payload, inbound <-chan duplex.Item) (<-chan duplex.Item, error) {
	h, err := r.resolve(payload.Metadata)
	if err != nil {
		return nil, err
	}
	return h.RequestChannel(ctx, payload, inbound)
}

var _ duplex.Responder = (*Router)(nil)
