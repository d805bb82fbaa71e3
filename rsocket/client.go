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

// Package rsocket is the construction glue applications actually
// import: builder chains over transport.Transport/ServerTransport that
// produce a connected, running duplex.Socket without requiring the
// caller to wire a registry, an id allocator, or the reader/writer
// goroutines by hand. All of the engine's actual behavior lives in
// duplex; this package only assembles it.
package rsocket

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/packetd/rsocket/duplex"
	"github.com/packetd/rsocket/logger"
	"github.com/packetd/rsocket/registry"
	"github.com/packetd/rsocket/transport"
)

const (
	defaultKeepalive = 30 * time.Second
	defaultLifetime  = 90 * time.Second
	defaultVersionHi = 1
	defaultVersionLo = 0
)

// Client wraps a started client-side duplex.Socket. It's the type
// applications hold onto and issue requests against.
type Client struct {
	*duplex.Socket
	conn transport.Connection
}

// Close tears down both the engine and the underlying transport
// connection.
func (c *Client) Close() error {
	err := c.Socket.Close()
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// ClientBuilder accumulates a client connection's configuration before
// Start dials the transport and runs the SETUP handshake.
type ClientBuilder struct {
	transport transport.Transport
	responder duplex.Responder
	onClose   func(error)
	mtu       int
	keepalive time.Duration
	lifetime  time.Duration
	dataMIME  string
	metaMIME  string
	token     []byte
	setupData duplex.Payload
}

// NewClientBuilder starts a builder with the engine's default
// keepalive/lifetime; every other field is opt-in.
func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{keepalive: defaultKeepalive, lifetime: defaultLifetime}
}

// Transport sets the transport.Transport Start dials through.
func (b *ClientBuilder) Transport(t transport.Transport) *ClientBuilder {
	b.transport = t
	return b
}

// Fragment enables outbound fragmentation at mtu bytes per frame. A
// zero value (the default) disables fragmentation.
func (b *ClientBuilder) Fragment(mtu int) *ClientBuilder {
	b.mtu = mtu
	return b
}

// Keepalive overrides the default keepalive tick period and peer
// lifetime, both negotiated to the server via the SETUP frame.
func (b *ClientBuilder) Keepalive(tick, lifetime time.Duration) *ClientBuilder {
	b.keepalive, b.lifetime = tick, lifetime
	return b
}

// DataMimeType sets the SETUP frame's negotiated data MIME type.
func (b *ClientBuilder) DataMimeType(mime string) *ClientBuilder {
	b.dataMIME = mime
	return b
}

// MetadataMimeType sets the SETUP frame's negotiated metadata MIME type.
func (b *ClientBuilder) MetadataMimeType(mime string) *ClientBuilder {
	b.metaMIME = mime
	return b
}

// SetupPayload attaches an initial payload to the SETUP frame.
func (b *ClientBuilder) SetupPayload(p duplex.Payload) *ClientBuilder {
	b.setupData = p
	return b
}

// ResumeToken generates a fresh random resume token and attaches it
// to the SETUP frame. The engine doesn't implement resumption itself;
// this exists so a server that does can identify reconnect attempts.
func (b *ClientBuilder) ResumeToken() *ClientBuilder {
	id := uuid.New()
	b.token = id[:]
	return b
}

// Acceptor installs r as the responder handling server-initiated
// requests on this client, unconditionally (see responder.ClientResponder).
func (b *ClientBuilder) Acceptor(r duplex.Responder) *ClientBuilder {
	b.responder = r
	return b
}

// OnClose registers a callback invoked once the connection tears down.
func (b *ClientBuilder) OnClose(fn func(error)) *ClientBuilder {
	b.onClose = fn
	return b
}

// Start dials the configured transport, builds the duplex.Socket, and
// sends SETUP. The returned Client is immediately usable; the
// handshake completes asynchronously as with any other client frame.
func (b *ClientBuilder) Start(ctx context.Context) (*Client, error) {
	if b.transport == nil {
		panic("rsocket: ClientBuilder.Start called without Transport")
	}

	conn, err := b.transport.Connect(ctx)
	if err != nil {
		return nil, err
	}

	opts := []duplex.Option{
		duplex.WithKeepalive(b.keepalive, b.lifetime),
		duplex.WithOnClose(func(cause error) {
			if cause != nil {
				logger.Warnf("rsocket: client connection closed: %v", cause)
			}
			if b.onClose != nil {
				b.onClose(cause)
			}
		}),
	}
	if b.mtu > 0 {
		opts = append(opts, duplex.WithMTU(b.mtu))
	}
	if b.responder != nil {
		opts = append(opts, duplex.WithResponder(b.responder))
	}

	socket := duplex.NewClient(registry.New(), opts...)
	socket.Start(ctx, conn, &duplex.SetupPayload{
		VersionMajor: defaultVersionHi,
		VersionMinor: defaultVersionLo,
		Keepalive:    b.keepalive,
		Lifetime:     b.lifetime,
		Token:        b.token,
		MetadataMIME: b.metaMIME,
		DataMIME:     b.dataMIME,
		Payload:      b.setupData,
	})

	return &Client{Socket: socket, conn: conn}, nil
}
