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

// Package transport defines the abstraction the duplex engine
// consumes to move frames on and off the wire, independent of any
// specific network technology. Concrete adapters live in the
// rsocketmem, rsockettcp and rsocketws subpackages.
package transport

import (
	"context"

	"github.com/packetd/rsocket/frame"
)

// FrameSink is the outbound half of a Connection: a single-writer
// destination for encoded frames.
type FrameSink interface {
	Send(ctx context.Context, f *frame.Frame) error
	Close() error
}

// FrameStream is the inbound half of a Connection: pulls the next
// decoded frame, blocking until one arrives, the context is
// cancelled, or the underlying connection ends (io.EOF).
type FrameStream interface {
	Next(ctx context.Context) (*frame.Frame, error)
}

// Connection is a single established duplex byte-stream, already
// split into independent send/receive halves so the engine's reader
// and writer loops never share one critical section.
type Connection interface {
	Split() (FrameSink, FrameStream)
	Close() error
}

// Transport produces Connections, either by dialing out or by
// accepting inbound connections.
type Transport interface {
	Connect(ctx context.Context) (Connection, error)
}

// ServerTransport accepts inbound Connections, one per accepted
// client, until the context is cancelled or it's closed.
type ServerTransport interface {
	Accept(ctx context.Context) (Connection, error)
	Close() error
}
