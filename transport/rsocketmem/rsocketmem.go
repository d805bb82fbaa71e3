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

// Package rsocketmem is an in-memory Transport backed by a pair of
// Go channels, used for tests that exercise a full duplex engine
// without a real socket.
package rsocketmem

import (
	"context"
	"io"
	"sync"

	"github.com/packetd/rsocket/frame"
	"github.com/packetd/rsocket/transport"
)

// NewPipe returns two Connections wired to each other: frames sent on
// one arrive on the other's FrameStream, and vice versa.
func NewPipe() (client transport.Connection, server transport.Connection) {
	a2b := make(chan *frame.Frame, 64)
	b2a := make(chan *frame.Frame, 64)
	return &conn{out: a2b, in: b2a, closedCh: make(chan struct{})},
		&conn{out: b2a, in: a2b, closedCh: make(chan struct{})}
}

type conn struct {
	out     chan *frame.Frame
	in      chan *frame.Frame
	closeMu sync.Mutex
	closed  bool
	// closedCh unblocks this side's own in-flight Next once Close runs,
	// the in-memory analog of a closed socket's read() failing locally.
	closedCh chan struct{}
}

func (c *conn) Split() (transport.FrameSink, transport.FrameStream) {
	return (*sink)(c), (*stream)(c)
}

func (c *conn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.out)
	close(c.closedCh)
	return nil
}

type sink conn

func (s *sink) Send(ctx context.Context, f *frame.Frame) error {
	c := (*conn)(s)
	c.closeMu.Lock()
	closed := c.closed
	c.closeMu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}
	select {
	case c.out <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *sink) Close() error { return (*conn)(s).Close() }

type stream conn

func (s *stream) Next(ctx context.Context) (*frame.Frame, error) {
	c := (*conn)(s)
	select {
	case f, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-c.closedCh:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// memTransport adapts an already-built Connection to the Transport
// interface, for a client that dials a pre-arranged pipe.
type memTransport struct {
	conn transport.Connection
}

func NewTransport(conn transport.Connection) transport.Transport {
	return &memTransport{conn: conn}
}

func (t *memTransport) Connect(ctx context.Context) (transport.Connection, error) {
	return t.conn, nil
}
