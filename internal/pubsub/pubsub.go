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

// Package pubsub provides the unbounded, single-consumer delivery
// queue the duplex engine uses for its outbound frame queue and for
// per-stream inbound delivery, plus a small broadcast fan-out used by
// demo responders to track concurrent subscriptions.
package pubsub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Queue is a single-consumer delivery queue. Push never blocks and,
// until Close, never drops: unlike a fixed-capacity channel, it grows
// to hold every pushed item, because losing one means losing a
// protocol frame.
type Queue interface {
	// ID is the queue's unique identifier.
	ID() string

	// PopTimeout removes and returns the oldest item, blocking until
	// one is available or the timeout elapses. The second return value
	// is false on timeout or once the queue has been closed and drained.
	PopTimeout(timeout time.Duration) (any, bool)

	// Push appends an item to the queue. Safe to call from multiple
	// goroutines; never blocks. Items pushed after Close are discarded.
	Push(data any)

	// Close marks the queue closed. Buffered items already pushed are
	// still delivered; PopTimeout returns false once they're drained.
	Close()
}

// unboundedQueue is the default Queue implementation: a slice-backed
// buffer guarded by a mutex, with a 1-slot doorbell channel waking a
// blocked popper. Chosen over a buffered channel because the duplex
// engine's outbound queue and per-stream delivery queue must never
// block or drop a producer — see the owning packages for why.
type unboundedQueue struct {
	id     string
	mut    sync.Mutex
	buf    []any
	bell   chan struct{}
	closed atomic.Bool
}

func newQueue() Queue {
	return &unboundedQueue{
		id:   uuid.New().String(),
		bell: make(chan struct{}, 1),
	}
}

func (q *unboundedQueue) ID() string {
	return q.id
}

func (q *unboundedQueue) ring() {
	select {
	case q.bell <- struct{}{}:
	default:
	}
}

func (q *unboundedQueue) Push(data any) {
	if q.closed.Load() {
		return
	}

	q.mut.Lock()
	q.buf = append(q.buf, data)
	q.mut.Unlock()
	q.ring()
}

func (q *unboundedQueue) pop() (any, bool) {
	q.mut.Lock()
	defer q.mut.Unlock()

	if len(q.buf) == 0 {
		return nil, false
	}
	item := q.buf[0]
	q.buf[0] = nil
	q.buf = q.buf[1:]
	return item, true
}

func (q *unboundedQueue) PopTimeout(timeout time.Duration) (any, bool) {
	if item, ok := q.pop(); ok {
		return item, true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if q.closed.Load() {
			if item, ok := q.pop(); ok {
				return item, true
			}
			return nil, false
		}

		select {
		case <-q.bell:
			if item, ok := q.pop(); ok {
				return item, true
			}
		case <-deadline.C:
			return nil, false
		}
	}
}

func (q *unboundedQueue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		q.ring()
	}
}

// NewQueue creates a new, empty Queue.
func NewQueue() Queue {
	return newQueue()
}

// PubSub fans a published message out to every currently subscribed
// Queue. Used by demo responders that need to observe how many
// concurrent request/stream subscriptions are active.
type PubSub struct {
	mut    sync.RWMutex
	queues map[string]Queue
}

func New() *PubSub {
	return &PubSub{
		queues: make(map[string]Queue),
	}
}

// Num reports the number of active subscriptions.
func (p *PubSub) Num() int {
	p.mut.RLock()
	defer p.mut.RUnlock()

	return len(p.queues)
}

func (p *PubSub) Subscribe() Queue {
	p.mut.Lock()
	defer p.mut.Unlock()

	q := newQueue()
	p.queues[q.ID()] = q
	return q
}

func (p *PubSub) Publish(msg any) {
	p.mut.RLock()
	defer p.mut.RUnlock()

	for _, q := range p.queues {
		q.Push(msg)
	}
}

func (p *PubSub) Unsubscribe(q Queue) {
	p.mut.Lock()
	defer p.mut.Unlock()

	delete(p.queues, q.ID())
	q.Close()
}
