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

package duplex

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/rsocket/frame"
	"github.com/packetd/rsocket/registry"
	"github.com/packetd/rsocket/rsocketerrors"
	"github.com/packetd/rsocket/transport/rsocketmem"
)

// echoResponder answers RequestResponse/RequestStream/RequestChannel by
// reflecting the request payload back, splitting streams into a fixed
// number of items so completion can be asserted deterministically.
type echoResponder struct {
	streamItems int
}

func (echoResponder) MetadataPush(context.Context, []byte) {}
func (echoResponder) FireAndForget(context.Context, Payload) {}

func (echoResponder) RequestResponse(_ context.Context, p Payload) (Payload, error) {
	return p, nil
}

func (r echoResponder) RequestStream(ctx context.Context, p Payload) (<-chan Item, error) {
	out := make(chan Item)
	go func() {
		defer close(out)
		for i := 0; i < r.streamItems; i++ {
			select {
			case out <- Item{Payload: p}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (echoResponder) RequestChannel(ctx context.Context, _ Payload, inbound <-chan Item) (<-chan Item, error) {
	out := make(chan Item)
	go func() {
		defer close(out)
		for item := range inbound {
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// blockingResponder never completes its stream on its own, so tests can
// assert a requester-driven CANCEL actually unblocks the responder side.
type blockingResponder struct {
	started chan struct{}
}

func (blockingResponder) MetadataPush(context.Context, []byte)   {}
func (blockingResponder) FireAndForget(context.Context, Payload) {}
func (blockingResponder) RequestResponse(context.Context, Payload) (Payload, error) {
	return Payload{}, rsocketerrors.ApplicationException("UNIMPLEMENTED")
}

func (r blockingResponder) RequestStream(ctx context.Context, _ Payload) (<-chan Item, error) {
	out := make(chan Item)
	go func() {
		defer close(out)
		close(r.started)
		<-ctx.Done()
	}()
	return out, nil
}

func (blockingResponder) RequestChannel(context.Context, Payload, <-chan Item) (<-chan Item, error) {
	return nil, rsocketerrors.ApplicationException("UNIMPLEMENTED")
}

// newPair wires a client and server Socket over an in-memory pipe, with
// resp installed as the server's responder up front (bypassing SETUP
// negotiation for tests that don't exercise it directly).
func newPair(t *testing.T, resp Responder) (client, server *Socket) {
	t.Helper()
	clientConn, serverConn := rsocketmem.NewPipe()

	client = NewClient(registry.New(), WithKeepalive(50*time.Millisecond, time.Second))
	server = NewServer(registry.New(), WithResponder(resp), WithKeepalive(50*time.Millisecond, time.Second))

	ctx := context.Background()
	server.Start(ctx, serverConn, nil)
	client.Start(ctx, clientConn, nil)
	server.setupDone.Store(true)

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func TestRequestResponse_Echo(t *testing.T) {
	client, _ := newPair(t, echoResponder{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := client.RequestResponse(ctx, Payload{Data: []byte("ping")})
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), resp.Data)
}

func TestRequestStream_CompletesAfterN(t *testing.T) {
	client, _ := newPair(t, echoResponder{streamItems: 3})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	items, err := client.RequestStream(ctx, Payload{Data: []byte("tick")})
	require.NoError(t, err)

	var got []Item
	for item := range items {
		got = append(got, item)
	}
	require.Len(t, got, 3)
	for _, item := range got {
		assert.NoError(t, item.Err)
		assert.Equal(t, []byte("tick"), item.Payload.Data)
	}
}

func TestRequestStream_CancelUnblocksResponder(t *testing.T) {
	started := make(chan struct{})
	client, server := newPair(t, blockingResponder{started: started})

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer reqCancel()

	items, err := client.RequestStream(reqCtx, Payload{})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("responder never started")
	}

	<-reqCtx.Done()
	_, ok := <-items
	assert.False(t, ok, "stream should be closed once ctx is cancelled")

	assert.Eventually(t, func() bool {
		return server.reg.Len() == 0
	}, time.Second, 10*time.Millisecond, "CANCEL should tear the responder-side entry down")
}

func TestRequestChannel_Bidirectional(t *testing.T) {
	client, _ := newPair(t, echoResponder{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	outbound := make(chan Item)
	inbound, err := client.RequestChannel(ctx, Payload{Data: []byte("open")}, outbound)
	require.NoError(t, err)

	go func() {
		defer close(outbound)
		for i := 0; i < 3; i++ {
			outbound <- Item{Payload: Payload{Data: []byte("msg")}}
		}
	}()

	var got []Item
	for item := range inbound {
		got = append(got, item)
	}
	require.Len(t, got, 3)
	for _, item := range got {
		assert.NoError(t, item.Err)
		assert.Equal(t, []byte("msg"), item.Payload.Data)
	}
}

func TestSetup_RejectedWithoutAcceptor(t *testing.T) {
	clientConn, serverConn := rsocketmem.NewPipe()

	client := NewClient(registry.New())
	server := NewServer(registry.New()) // no WithAcceptor

	ctx := context.Background()
	server.Start(ctx, serverConn, nil)

	done := make(chan error, 1)
	client = NewClient(registry.New(), WithOnClose(func(err error) {
		done <- err
	}))
	client.Start(ctx, clientConn, &SetupPayload{VersionMajor: 1, Keepalive: 50 * time.Millisecond, Lifetime: time.Second})

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("client never observed the SETUP rejection")
	}

	_ = server.Close()
}

func TestServer_RejectsNonSetupFirstFrame(t *testing.T) {
	clientConn, serverConn := rsocketmem.NewPipe()

	done := make(chan error, 1)
	server := NewServer(registry.New(), WithAcceptor(func(SetupPayload, *Socket) (Responder, error) {
		return echoResponder{}, nil
	}), WithOnClose(func(err error) {
		done <- err
	}))

	ctx := context.Background()
	server.Start(ctx, serverConn, nil)

	sink, _ := clientConn.Split()
	require.NoError(t, sink.Send(ctx, frame.New(1, 0, &frame.RequestResponse{Data: []byte("ping")})))

	select {
	case err := <-done:
		require.Error(t, err)
		var re *rsocketerrors.RSocketError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, rsocketerrors.CodeRejectedSetup, re.Code)
	case <-time.After(time.Second):
		t.Fatal("server never rejected the non-SETUP first frame")
	}
}

func TestKeepalive_RoundTripUpdatesLastAck(t *testing.T) {
	client, server := newPair(t, echoResponder{})

	before := lastAckTime(server)
	time.Sleep(150 * time.Millisecond)
	after := lastAckTime(server)

	assert.True(t, after.After(before), "server should observe an acknowledged keepalive round trip")
	_ = client
}

func TestRequestResponse_CancelRaceNeverDoubleDelivers(t *testing.T) {
	client, server := newPair(t, echoResponder{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reqCtx, reqCancel := context.WithTimeout(ctx, time.Millisecond)
			defer reqCancel()
			_, _ = client.RequestResponse(reqCtx, Payload{Data: []byte("x")})
		}()
	}
	wg.Wait()

	// the registry should settle back to empty: every entry removed
	// exactly once regardless of which side, completion or cancel, won.
	assert.Eventually(t, func() bool {
		return server.reg.Len() == 0 && client.reg.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestClose_FailsOutstandingWaiters(t *testing.T) {
	client, server := newPair(t, blockingResponder{started: make(chan struct{})})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	items, err := client.RequestStream(ctx, Payload{})
	require.NoError(t, err)

	require.NoError(t, server.Close())
	require.NoError(t, client.Close())

	item, ok := <-items
	require.True(t, ok, "a ConnectionClosed error should be delivered before the channel closes")
	assert.Error(t, item.Err)

	_, ok = <-items
	assert.False(t, ok)
}
