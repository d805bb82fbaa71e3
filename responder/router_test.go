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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/rsocket/duplex"
	"github.com/packetd/rsocket/extension"
)

func routedMetadata(t *testing.T, route string) []byte {
	t.Helper()
	routing := extension.NewRoutingMetadataBuilder().Push(route).Build()
	entries := []extension.CompositeMetadataEntry{
		extension.NewCompositeMetadataEntry(extension.RoutingMIME, routing.Encode()),
	}
	return extension.EncodeComposite(entries)
}

func TestRouter_DispatchesToRegisteredRoute(t *testing.T) {
	r := NewRouter()
	r.Handle("echo", Funcs{
		RequestResponseFunc: func(_ context.Context, p duplex.Payload) (duplex.Payload, error) {
			return p, nil
		},
	})

	resp, err := r.RequestResponse(context.Background(), duplex.Payload{
		Metadata: routedMetadata(t, "echo"),
		Data:     []byte("ping"),
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), resp.Data)
}

func TestRouter_UnknownRouteIsRejected(t *testing.T) {
	r := NewRouter()
	r.Handle("echo", Empty{})

	_, err := r.RequestResponse(context.Background(), duplex.Payload{
		Metadata: routedMetadata(t, "missing"),
	})
	assert.Error(t, err)
}

func TestRouter_MissingMetadataIsInvalid(t *testing.T) {
	r := NewRouter()
	_, err := r.RequestResponse(context.Background(), duplex.Payload{})
	assert.Error(t, err)
}

func TestRouter_StreamAndChannelDelegate(t *testing.T) {
	r := NewRouter()
	r.Handle("ticks", Funcs{
		RequestStreamFunc: func(ctx context.Context, p duplex.Payload) (<-chan duplex.Item, error) {
			out := make(chan duplex.Item, 1)
			out <- duplex.Item{Payload: p}
			close(out)
			return out, nil
		},
		RequestChannelFunc: func(_ context.Context, _ duplex.Payload, inbound <-chan duplex.Item) (<-chan duplex.Item, error) {
			return inbound, nil
		},
	})

	items, err := r.RequestStream(context.Background(), duplex.Payload{Metadata: routedMetadata(t, "ticks")})
	require.NoError(t, err)
	got := <-items
	assert.NoError(t, got.Err)

	inbound := make(chan duplex.Item)
	out, err := r.RequestChannel(context.Background(), duplex.Payload{Metadata: routedMetadata(t, "ticks")}, inbound)
	require.NoError(t, err)
	assert.Equal(t, (<-chan duplex.Item)(inbound), out)
}
