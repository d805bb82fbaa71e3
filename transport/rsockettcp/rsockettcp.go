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

// Package rsockettcp adapts a net.Conn (TCP, TLS, or Unix domain
// socket — anything stream-oriented) into a Transport using the
// length-prefixed framing. The read-loop shape — an atomic closed flag
// guarding a single owning goroutine, tracked activity time — follows
// the same per-connection TCP stream state idiom packetd's
// connstream/tcp.go used before that package was trimmed for being
// packet-capture specific.
package rsockettcp

import (
	"bufio"
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/packetd/rsocket/frame"
	"github.com/packetd/rsocket/rsocketerrors"
	"github.com/packetd/rsocket/transport"
)

type conn struct {
	nc       net.Conn
	reader   *bufio.Reader
	closed   atomic.Bool
	activeAt atomic.Int64
}

// NewConnection wraps an already-established net.Conn.
func NewConnection(nc net.Conn) transport.Connection {
	c := &conn{nc: nc, reader: bufio.NewReaderSize(nc, 64*1024)}
	c.activeAt.Store(time.Now().UnixNano())
	return c
}

func (c *conn) Split() (transport.FrameSink, transport.FrameStream) {
	return (*sink)(c), (*stream)(c)
}

func (c *conn) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		return c.nc.Close()
	}
	return nil
}

type sink conn

func (s *sink) Send(ctx context.Context, f *frame.Frame) error {
	c := (*conn)(s)
	if dl, ok := ctx.Deadline(); ok {
		_ = c.nc.SetWriteDeadline(dl)
	}
	_, err := c.nc.Write(frame.Encode(f))
	if err != nil {
		return rsocketerrors.IOError(err)
	}
	c.activeAt.Store(time.Now().UnixNano())
	return nil
}

func (s *sink) Close() error { return (*conn)(s).Close() }

type stream conn

// Next pulls bytes off the buffered reader until a complete frame is
// available, growing its read window as needed. bufio.Reader already
// gives us the "accumulate until enough bytes" behavior the codec's
// IncompleteFrame result calls for.
func (s *stream) Next(ctx context.Context) (*frame.Frame, error) {
	c := (*conn)(s)
	if dl, ok := ctx.Deadline(); ok {
		_ = c.nc.SetReadDeadline(dl)
	}

	lenPrefix, err := c.reader.Peek(3)
	if err != nil {
		return nil, rsocketerrors.IOError(err)
	}
	length := int(lenPrefix[0])<<16 | int(lenPrefix[1])<<8 | int(lenPrefix[2])

	total := 3 + length
	buf := make([]byte, total)
	if _, err := readFull(c.reader, buf); err != nil {
		return nil, rsocketerrors.IOError(err)
	}
	c.activeAt.Store(time.Now().UnixNano())

	f, _, err := frame.Decode(buf)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

// dialTransport dials a fresh net.Conn per Connect call.
type dialTransport struct {
	network, address string
	dialer           net.Dialer
}

// NewTransport builds a client Transport that dials network/address
// (e.g. "tcp", "host:port") on every Connect.
func NewTransport(network, address string) transport.Transport {
	return &dialTransport{network: network, address: address}
}

func (t *dialTransport) Connect(ctx context.Context) (transport.Connection, error) {
	nc, err := t.dialer.DialContext(ctx, t.network, t.address)
	if err != nil {
		return nil, rsocketerrors.IOError(err)
	}
	return NewConnection(nc), nil
}

// listenerTransport accepts inbound net.Conns on a bound listener.
type listenerTransport struct {
	ln net.Listener
}

// NewServerTransport wraps an already-bound net.Listener.
func NewServerTransport(ln net.Listener) transport.ServerTransport {
	return &listenerTransport{ln: ln}
}

// Accept does not watch ctx: a blocked Accept returns only when a
// client connects or Close closes the listener.
func (t *listenerTransport) Accept(ctx context.Context) (transport.Connection, error) {
	nc, err := t.ln.Accept()
	if err != nil {
		return nil, rsocketerrors.IOError(err)
	}
	return NewConnection(nc), nil
}

func (t *listenerTransport) Close() error {
	return t.ln.Close()
}
