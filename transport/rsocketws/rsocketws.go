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

// Package rsocketws adapts a WebSocket connection into a Transport.
// Message-oriented transports carry exactly one frame per binary
// message with no length prefix, unlike stream transports which need
// their own length framing. Library: golang.org/x/net/websocket.
package rsocketws

import (
	"context"
	"io"

	"golang.org/x/net/websocket"

	"github.com/packetd/rsocket/frame"
	"github.com/packetd/rsocket/rsocketerrors"
	"github.com/packetd/rsocket/transport"
)

type conn struct {
	ws *websocket.Conn
}

// NewConnection wraps an already-established *websocket.Conn, either
// from websocket.Dial on the client side or the Handler callback on
// the server side.
func NewConnection(ws *websocket.Conn) transport.Connection {
	return &conn{ws: ws}
}

func (c *conn) Split() (transport.FrameSink, transport.FrameStream) {
	return (*sink)(c), (*stream)(c)
}

func (c *conn) Close() error { return c.ws.Close() }

type sink conn

func (s *sink) Send(ctx context.Context, f *frame.Frame) error {
	_, err := (*conn)(s).ws.Write(frame.EncodeUnframed(f))
	if err != nil {
		return rsocketerrors.IOError(err)
	}
	return nil
}

func (s *sink) Close() error { return (*conn)(s).Close() }

type stream conn

func (s *stream) Next(ctx context.Context) (*frame.Frame, error) {
	var msg []byte
	if err := websocket.Message.Receive((*conn)(s).ws, &msg); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, rsocketerrors.IOError(err)
	}
	return frame.DecodeUnframed(msg)
}

// clientTransport dials a single WebSocket endpoint.
type clientTransport struct {
	url, origin string
}

// NewTransport builds a client Transport that dials url (e.g.
// "ws://host:port/rsocket") on every Connect, advertising origin.
func NewTransport(url, origin string) transport.Transport {
	return &clientTransport{url: url, origin: origin}
}

func (t *clientTransport) Connect(ctx context.Context) (transport.Connection, error) {
	ws, err := websocket.Dial(t.url, "", t.origin)
	if err != nil {
		return nil, rsocketerrors.IOError(err)
	}
	return NewConnection(ws), nil
}
