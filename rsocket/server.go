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
	"sync"
	"time"

	"github.com/packetd/rsocket/duplex"
	"github.com/packetd/rsocket/internal/rescue"
	"github.com/packetd/rsocket/logger"
	"github.com/packetd/rsocket/registry"
	"github.com/packetd/rsocket/transport"
)

// Server accepts inbound connections and runs one duplex.Socket per
// accepted connection until Close is called.
type Server struct {
	transport transport.ServerTransport
	acceptor  duplex.Acceptor
	onClose   func(error)
	onStart   func()
	mtu       int
	keepalive time.Duration
	lifetime  time.Duration

	mut     sync.Mutex
	sockets map[*duplex.Socket]transport.Connection
}

// ServerBuilder accumulates a server's configuration before Serve
// starts accepting connections.
type ServerBuilder struct {
	transport transport.ServerTransport
	acceptor  duplex.Acceptor
	onClose   func(error)
	onStart   func()
	mtu       int
	keepalive time.Duration
	lifetime  time.Duration
}

// NewServerBuilder starts a builder with the engine's default
// keepalive/lifetime; every other field is opt-in.
func NewServerBuilder() *ServerBuilder {
	return &ServerBuilder{keepalive: defaultKeepalive, lifetime: defaultLifetime}
}

// Transport sets the transport.ServerTransport Serve accepts from.
func (b *ServerBuilder) Transport(t transport.ServerTransport) *ServerBuilder {
	b.transport = t
	return b
}

// Fragment enables outbound fragmentation at mtu bytes per frame for
// every accepted connection. A zero value (the default) disables it.
func (b *ServerBuilder) Fragment(mtu int) *ServerBuilder {
	b.mtu = mtu
	return b
}

// Keepalive overrides the default keepalive tick period and peer
// lifetime applied to an accepted connection until its SETUP
// negotiates different values.
func (b *ServerBuilder) Keepalive(tick, lifetime time.Duration) *ServerBuilder {
	b.keepalive, b.lifetime = tick, lifetime
	return b
}

// Acceptor installs the function producing a Responder for each
// accepted connection once its SETUP frame arrives. Returning an
// error from acceptor rejects that connection with REJECTED_SETUP.
func (b *ServerBuilder) Acceptor(acceptor duplex.Acceptor) *ServerBuilder {
	b.acceptor = acceptor
	return b
}

// OnStart registers a callback invoked once, after the transport has
// begun accepting, before Serve blocks in its accept loop.
func (b *ServerBuilder) OnStart(fn func()) *ServerBuilder {
	b.onStart = fn
	return b
}

// OnClose registers a callback invoked once per accepted connection
// when that connection's engine tears down.
func (b *ServerBuilder) OnClose(fn func(error)) *ServerBuilder {
	b.onClose = fn
	return b
}

// Build finalizes the configuration into a Server without accepting
// any connections yet; call Serve to run the accept loop.
func (b *ServerBuilder) Build() *Server {
	if b.transport == nil {
		panic("rsocket: ServerBuilder.Build called without Transport")
	}
	if b.acceptor == nil {
		panic("rsocket: ServerBuilder.Build called without Acceptor")
	}
	return &Server{
		transport: b.transport,
		acceptor:  b.acceptor,
		onClose:   b.onClose,
		onStart:   b.onStart,
		mtu:       b.mtu,
		keepalive: b.keepalive,
		lifetime:  b.lifetime,
		sockets:   make(map[*duplex.Socket]transport.Connection),
	}
}

// Serve accepts connections in a loop, spawning one duplex.Socket per
// connection, until ctx is cancelled or Accept returns a terminal
// error. It returns that terminal error, or nil if ctx was the cause.
func (s *Server) Serve(ctx context.Context) error {
	if s.onStart != nil {
		s.onStart()
	}
	for {
		conn, err := s.transport.Accept(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn transport.Connection) {
	defer func() {
		if r := recover(); r != nil {
			for _, h := range rescue.PanicHandlers {
				h(r)
			}
		}
	}()

	var socket *duplex.Socket

	opts := []duplex.Option{
		duplex.WithKeepalive(s.keepalive, s.lifetime),
		duplex.WithAcceptor(s.acceptor),
		duplex.WithOnClose(func(cause error) {
			if cause != nil {
				logger.Warnf("rsocket: server connection closed: %v", cause)
			}
			s.mut.Lock()
			delete(s.sockets, socket)
			s.mut.Unlock()
			if s.onClose != nil {
				s.onClose(cause)
			}
		}),
	}
	if s.mtu > 0 {
		opts = append(opts, duplex.WithMTU(s.mtu))
	}

	socket = duplex.NewServer(registry.New(), opts...)

	s.mut.Lock()
	s.sockets[socket] = conn
	s.mut.Unlock()

	socket.Start(ctx, conn, nil)
}

// Close tears down every connection currently being served and closes
// the listening transport.
func (s *Server) Close() error {
	s.mut.Lock()
	sockets := make(map[*duplex.Socket]transport.Connection, len(s.sockets))
	for sock, conn := range s.sockets {
		sockets[sock] = conn
	}
	s.mut.Unlock()

	for sock, conn := range sockets {
		_ = sock.Close()
		_ = conn.Close()
	}
	return s.transport.Close()
}

// Stats is a point-in-time snapshot of server load, for the CLI's
// diagnostics HTTP endpoint.
type Stats struct {
	ActiveConnections int `json:"active_connections"`
	PendingStreams    int `json:"pending_streams"`
}

// Stats reports the current connection count and the sum of every
// connection's in-flight stream count.
func (s *Server) Stats() Stats {
	s.mut.Lock()
	defer s.mut.Unlock()

	stats := Stats{ActiveConnections: len(s.sockets)}
	for sock := range s.sockets {
		stats.PendingStreams += sock.PendingStreams()
	}
	return stats
}
