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

// Package duplex implements the per-connection RSocket protocol
// engine: the reader loop, the writer loop, keepalive, the five
// requester operations, the per-stream state machine, and connection
// teardown. The closest teacher analog is controller.Controller's
// run-loop-plus-shared-state shape, generalized from one
// sniffer-to-exporter pipeline into a symmetric multiplexed protocol
// engine.
package duplex

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/packetd/rsocket/frame"
	"github.com/packetd/rsocket/fragmentation"
	"github.com/packetd/rsocket/internal/pubsub"
	"github.com/packetd/rsocket/internal/rescue"
	"github.com/packetd/rsocket/logger"
	"github.com/packetd/rsocket/registry"
	"github.com/packetd/rsocket/rsocketerrors"
	"github.com/packetd/rsocket/transport"
)

// Payload is the application-visible data + metadata pair carried by
// every interaction.
type Payload struct {
	Metadata []byte
	Data     []byte
}

// SetupPayload is the negotiated connection configuration plus an
// optional initial payload, read off (or written into) the SETUP
// frame.
type SetupPayload struct {
	VersionMajor uint16
	VersionMinor uint16
	Keepalive    time.Duration
	Lifetime     time.Duration
	Token        []byte
	MetadataMIME string
	DataMIME     string
	Payload      Payload
}

// Item is one element delivered on a stream or channel: either a
// Payload or a terminal error. A responder's stream/channel return
// channel is closed once the last Item (success or failure) has been
// sent.
type Item struct {
	Payload Payload
	Err     error
}

// Responder is the capability set a connection's peer invokes inbound
// requests against. An implementation provides all five interaction
// models; partial support is expressed by returning
// rsocketerrors.ApplicationException("UNIMPLEMENTED") from the
// methods it doesn't support (see responder.Empty).
type Responder interface {
	MetadataPush(ctx context.Context, metadata []byte)
	FireAndForget(ctx context.Context, payload Payload)
	RequestResponse(ctx context.Context, payload Payload) (Payload, error)
	RequestStream(ctx context.Context, payload Payload) (<-chan Item, error)
	RequestChannel(ctx context.Context, payload Payload, inbound <-chan Item) (<-chan Item, error)
}

// Acceptor produces a Responder for a freshly accepted server
// connection once its SETUP frame has arrived. Returning an error
// rejects the connection with REJECTED_SETUP.
type Acceptor func(setup SetupPayload, socket *Socket) (Responder, error)

// noFragmentMTU is the effective MTU used when fragmentation is
// disabled: large enough that fragmentation.Split never produces more
// than one frame for any payload this codec can represent.
const noFragmentMTU = 1 << 24

const defaultPollInterval = 50 * time.Millisecond

// Option configures a Socket at construction time.
type Option func(*Socket)

// WithMTU enables outbound fragmentation at the given byte budget per
// frame. Disabled (mtu == 0) by default.
func WithMTU(mtu int) Option {
	return func(s *Socket) { s.mtu = mtu }
}

// WithKeepalive overrides the default keepalive tick/lifetime used
// until a SETUP negotiates different values.
func WithKeepalive(tick, lifetime time.Duration) Option {
	return func(s *Socket) { s.keepalive, s.lifetime = tick, lifetime }
}

// WithAcceptor installs a server-side acceptor, invoked once the
// connection's SETUP frame arrives.
func WithAcceptor(a Acceptor) Option {
	return func(s *Socket) { s.acceptor = a }
}

// WithResponder installs a responder unconditionally, for a client
// that exposes handling of server-initiated requests without going
// through a SETUP-triggered install.
func WithResponder(r Responder) Option {
	return func(s *Socket) { s.SetResponder(r) }
}

// WithOnClose registers a callback invoked exactly once when the
// engine tears the connection down, with the error that caused it
// (nil on a clean local Close).
func WithOnClose(fn func(error)) Option {
	return func(s *Socket) { s.onClose = fn }
}

type responderBox struct{ r Responder }

// Socket is one connection's duplex protocol engine: a stream-id
// allocator, a shared registry, an outbound frame queue, and the
// goroutines driving the reader and writer loops.
type Socket struct {
	ids      *idAllocator
	isServer bool
	reg      *registry.Registry

	outbound pubsub.Queue
	sink     transport.FrameSink

	responder atomic.Pointer[responderBox]
	acceptor  Acceptor
	setupDone atomic.Bool

	joiners map[uint32]*fragmentation.Joiner

	mtu       int
	keepalive time.Duration
	lifetime  time.Duration
	lastAckAt atomic.Int64

	onClose   func(error)
	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// NewClient builds a Socket that allocates odd stream ids starting at
// 1, matching the client side of the wire protocol.
func NewClient(reg *registry.Registry, opts ...Option) *Socket {
	return newSocket(reg, newIDAllocator(1, false), false, opts...)
}

// NewServer builds a Socket that allocates even stream ids starting
// at 2, matching the server side of the wire protocol. A server
// Socket normally also takes WithAcceptor.
func NewServer(reg *registry.Registry, opts ...Option) *Socket {
	return newSocket(reg, newIDAllocator(0, true), true, opts...)
}

func newSocket(reg *registry.Registry, ids *idAllocator, isServer bool, opts ...Option) *Socket {
	s := &Socket{
		ids:       ids,
		isServer:  isServer,
		reg:       reg,
		outbound:  pubsub.NewQueue(),
		joiners:   make(map[uint32]*fragmentation.Joiner),
		keepalive: 30 * time.Second,
		lifetime:  90 * time.Second,
		closed:    make(chan struct{}),
	}
	s.responder.Store(&responderBox{r: emptyResponder{}})
	for _, opt := range opts {
		opt(s)
	}
	s.lastAckAt.Store(time.Now().UnixNano())
	return s
}

// emptyResponder is duplex's own zero-value fallback, identical in
// behavior to responder.Empty but declared here to avoid an import
// cycle (responder imports duplex for the Socket/Acceptor types).
type emptyResponder struct{}

func (emptyResponder) MetadataPush(context.Context, []byte)    {}
func (emptyResponder) FireAndForget(context.Context, Payload) {}
func (emptyResponder) RequestResponse(context.Context, Payload) (Payload, error) {
	return Payload{}, rsocketerrors.ApplicationException("UNIMPLEMENTED")
}
func (emptyResponder) RequestStream(context.Context, Payload) (<-chan Item, error) {
	return nil, rsocketerrors.ApplicationException("UNIMPLEMENTED")
}
func (emptyResponder) RequestChannel(context.Context, Payload, <-chan Item) (<-chan Item, error) {
	return nil, rsocketerrors.ApplicationException("UNIMPLEMENTED")
}

// Responder returns the currently installed responder.
func (s *Socket) Responder() Responder {
	if b := s.responder.Load(); b != nil {
		return b.r
	}
	return emptyResponder{}
}

// SetResponder atomically installs r as the active responder.
func (s *Socket) SetResponder(r Responder) {
	s.responder.Store(&responderBox{r: r})
}

// PendingStreams reports this connection's number of in-flight
// requester waiters plus responder streams/channels, for diagnostics.
func (s *Socket) PendingStreams() int {
	return s.reg.Len()
}

// Start wires the engine to conn and launches its reader and writer
// goroutines. setup is non-nil only for a client connection, which is
// then sent as the very first outbound frame; a server Socket passes
// nil and waits for SETUP to arrive inbound instead.
func (s *Socket) Start(ctx context.Context, conn transport.Connection, setup *SetupPayload) {
	sink, stream := conn.Split()
	s.sink = sink

	if setup != nil {
		s.keepalive, s.lifetime = setup.Keepalive, setup.Lifetime
		s.setupDone.Store(true)
		s.enqueue(buildSetupFrame(*setup))
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.readLoop(ctx, stream)
	}()
	go func() {
		defer s.wg.Done()
		s.writeLoop(ctx)
	}()
}

// buildSetupFrame always addresses stream id 0: SETUP is a
// connection-level frame, never allocated from the stream-id counter.
func buildSetupFrame(setup SetupPayload) *frame.Frame {
	b := frame.NewSetupBuilder(0).
		Version(setup.VersionMajor, setup.VersionMinor).
		Keepalive(setup.Keepalive).
		Lifetime(setup.Lifetime)
	if setup.Token != nil {
		b = b.Token(setup.Token)
	}
	if setup.MetadataMIME != "" {
		b = b.MIMEMetadata(setup.MetadataMIME)
	}
	if setup.DataMIME != "" {
		b = b.MIMEData(setup.DataMIME)
	}
	if setup.Payload.Metadata != nil {
		b = b.Metadata(setup.Payload.Metadata)
	}
	if setup.Payload.Data != nil {
		b = b.Data(setup.Payload.Data)
	}
	return b.Build()
}

// enqueue pushes f onto the outbound queue. Never blocks; the queue
// is unbounded, matching the "producers never block" resource model.
func (s *Socket) enqueue(f *frame.Frame) {
	select {
	case <-s.closed:
		return
	default:
	}
	incFramesSent(f.Type())
	s.outbound.Push(f)
}

// enqueueRequest fragments payload per kind/mtu and enqueues every
// resulting frame in order.
func (s *Socket) enqueueRequest(streamID uint32, kind fragmentation.Kind, initialN uint32, p Payload) {
	mtu := s.mtu
	if mtu <= 0 {
		mtu = noFragmentMTU
	}
	for _, f := range fragmentation.Split(streamID, mtu, kind, initialN, p.Metadata, p.Data) {
		s.enqueue(f)
	}
}

// cancelStream removes streamID's waiter (if still present) and tells
// the peer to stop producing for it. Safe to call after the waiter
// has already been resolved; the extra CANCEL is a harmless no-op for
// a peer that has already completed that stream.
func (s *Socket) cancelStream(streamID uint32) {
	s.reg.Cancel(streamID)
	s.enqueue(frame.NewCancel(streamID))
}

// Close tears the engine down: it stops the reader/writer loops,
// drains the registry, and fails every outstanding waiter with
// ConnectionClosed. Safe to call more than once and from any
// goroutine; only the first call has effect. Blocks until both loops
// have exited.
func (s *Socket) Close() error {
	err := s.closeWith(nil)
	s.wg.Wait()
	return err
}

// closeWith runs the teardown exactly once, whether triggered by a
// user Close() or by the reader/writer loop noticing a fatal error.
// It must never block on s.wg: a loop goroutine calling this on its
// own failure path would deadlock waiting on itself.
func (s *Socket) closeWith(cause error) error {
	var result *multierror.Error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.outbound.Push(frame.New(0, 0, &frame.Error{Code: uint32(rsocketerrors.CodeConnectionClosed)}))
		s.outbound.Close()

		drained := s.reg.DrainAll()
		connErr := rsocketerrors.ConnectionClosed("connection closed")
		if cause != nil {
			connErr = rsocketerrors.ConnectionClosed(cause.Error())
		}
		for id, e := range drained {
			failEntry(e, connErr)
			logger.Debugf("duplex: dropped waiter for stream %d on close", id)
		}

		if s.sink != nil {
			if cerr := s.sink.Close(); cerr != nil {
				result = multierror.Append(result, errors.Wrap(cerr, "duplex: closing sink"))
			}
		}
		if s.onClose != nil {
			s.onClose(cause)
		}
	})
	return result.ErrorOrNil()
}

func failEntry(e *registry.Entry, err error) {
	switch e.Kind {
	case registry.KindAwaitResponse:
		if e.ResponseCh != nil {
			select {
			case e.ResponseCh <- registry.Result{Err: err}:
			default:
			}
		}
	case registry.KindAwaitStream:
		if e.Queue != nil {
			e.Queue.Push(Item{Err: err})
			e.Queue.Close()
		}
	case registry.KindResponding:
		// No requester-side waiter to fail, but a long-running
		// stream/channel responder still needs telling to stop.
		if e.Cancel != nil {
			e.Cancel()
		}
		if e.Queue != nil {
			e.Queue.Push(Item{Err: err})
			e.Queue.Close()
		}
	}
}

// invokeRecover runs fn, converting a panic into an
// ApplicationException instead of letting it escape the calling
// goroutine — the duplex-engine equivalent of internal/rescue's
// HandleCrash, generalized to report the panic rather than merely
// swallow it since the caller still owes the peer a result.
func invokeRecover(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			for _, h := range rescue.PanicHandlers {
				h(r)
			}
			err = rsocketerrors.ApplicationException(fmt.Sprintf("panic: %v", r))
		}
	}()
	return fn()
}
