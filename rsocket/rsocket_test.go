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

package rsocket

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/rsocket/duplex"
	"github.com/packetd/rsocket/responder"
	"github.com/packetd/rsocket/transport/rsockettcp"
)

func TestClientServer_RequestResponseOverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := NewServerBuilder().
		Transport(rsockettcp.NewServerTransport(ln)).
		Keepalive(50*time.Millisecond, time.Second).
		Acceptor(responder.Static(responder.Funcs{
			RequestResponseFunc: func(_ context.Context, p duplex.Payload) (duplex.Payload, error) {
				return duplex.Payload{Data: append([]byte("echo:"), p.Data...)}, nil
			},
		})).
		OnStart(func() { close(started) }).
		Build()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.Serve(ctx)
	t.Cleanup(func() { _ = srv.Close() })
	<-started

	client, err := NewClientBuilder().
		Transport(rsockettcp.NewTransport("tcp", ln.Addr().String())).
		Keepalive(50*time.Millisecond, time.Second).
		Start(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	resp, err := client.RequestResponse(ctx, duplex.Payload{Data: []byte("ping")})
	require.NoError(t, err)
	assert.Equal(t, []byte("echo:ping"), resp.Data)
}

func TestServerBuilder_PanicsWithoutTransport(t *testing.T) {
	assert.Panics(t, func() {
		NewServerBuilder().Acceptor(responder.Static(responder.Empty{})).Build()
	})
}

func TestServerBuilder_PanicsWithoutAcceptor(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	assert.Panics(t, func() {
		NewServerBuilder().Transport(rsockettcp.NewServerTransport(ln)).Build()
	})
}

func TestClientBuilder_FromConfig(t *testing.T) {
	b, err := NewClientBuilder().FromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultKeepalive, b.keepalive)
	assert.Equal(t, "application/octet-stream", b.dataMIME)
}
