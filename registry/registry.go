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

// Package registry is the stream-id keyed table of in-flight request
// state a duplex engine's reader and writer loops share. The delivery
// queue backing AwaitStream entries is adapted from internal/pubsub.
package registry

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/packetd/rsocket/common"
	"github.com/packetd/rsocket/internal/pubsub"
)

var entriesGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: common.App,
		Name:      "registry_entries",
		Help:      "Live stream registry entries across all connections in this process",
	},
)

// EntryKind tags which of the three registry entry shapes an Entry
// holds.
type EntryKind int

const (
	// KindAwaitResponse is a requester waiting on exactly one result
	// for request/response.
	KindAwaitResponse EntryKind = iota
	// KindAwaitStream is a requester waiting on many results, used for
	// request/stream and the inbound half of request/channel.
	KindAwaitStream
	// KindResponding is a responder's in-flight computation: a
	// request/response (tracked to detect a racing CANCEL), or a
	// request/stream or request/channel producer (tracked so a CANCEL
	// can stop it, and for a channel, to receive inbound payloads).
	KindResponding
)

// Entry is one registry slot. Exactly one of the kind-specific fields
// is populated, matching EntryKind.
type Entry struct {
	Kind EntryKind

	// AwaitResponse: a one-shot delivery channel for request/response.
	ResponseCh chan Result

	// AwaitStream: an unbounded delivery queue for request/stream and
	// request/channel inbound payloads.
	Queue pubsub.Queue

	// Responding, request/response only: counts down from 2 — one
	// decrement for the responder's completion, one for an incoming
	// CANCEL. The completion removes the entry and counts down; if
	// that reaches zero a CANCEL arrived first and the result is
	// dropped, otherwise the result is sent. A CANCEL that arrives
	// after the entry is gone is ignored.
	Counter *int32

	// Responding, request/stream and request/channel: stops the
	// producing goroutine when a CANCEL or local teardown arrives.
	Cancel context.CancelFunc
}

// Result is what an AwaitResponse entry is closed with: a resolved
// payload delivery or an error.
type Result struct {
	Metadata []byte
	Data     []byte
	Err      error
}

// Registry maps stream-id to Entry under one mutex. Every method is
// O(1) and non-blocking by construction, since the hot reader/writer
// path touches it on every frame.
type Registry struct {
	mut     sync.Mutex
	entries map[uint32]*Entry
}

func New() *Registry {
	return &Registry{
		entries: make(map[uint32]*Entry),
	}
}

// Insert adds or replaces the entry for streamID.
func (r *Registry) Insert(streamID uint32, e *Entry) {
	r.mut.Lock()
	defer r.mut.Unlock()
	_, existed := r.entries[streamID]
	r.entries[streamID] = e
	if !existed {
		entriesGauge.Inc()
	}
}

// Get returns the entry for streamID without removing it.
func (r *Registry) Get(streamID uint32) (*Entry, bool) {
	r.mut.Lock()
	defer r.mut.Unlock()
	e, ok := r.entries[streamID]
	return e, ok
}

// Remove deletes the entry for streamID, if any.
func (r *Registry) Remove(streamID uint32) {
	r.mut.Lock()
	defer r.mut.Unlock()
	if _, ok := r.entries[streamID]; ok {
		delete(r.entries, streamID)
		entriesGauge.Dec()
	}
}

// Take removes and returns the entry for streamID in one step.
func (r *Registry) Take(streamID uint32) (*Entry, bool) {
	r.mut.Lock()
	defer r.mut.Unlock()
	e, ok := r.entries[streamID]
	if ok {
		delete(r.entries, streamID)
		entriesGauge.Dec()
	}
	return e, ok
}

// Len reports the number of live entries. The registry-size metric
// gauge is maintained separately, by Insert, Remove and Take.
func (r *Registry) Len() int {
	r.mut.Lock()
	defer r.mut.Unlock()
	return len(r.entries)
}

// Cancel removes the entry for streamID — the requester-side "drop the
// waiter, tell the writer to send CANCEL" path. The caller is still
// responsible for enqueueing the CANCEL frame itself; this only
// handles registry bookkeeping.
func (r *Registry) Cancel(streamID uint32) {
	r.Remove(streamID)
}

// DrainAll removes every entry and reports them, for connection close
// to fail outstanding waiters with CONNECTION_CLOSED.
func (r *Registry) DrainAll() map[uint32]*Entry {
	r.mut.Lock()
	defer r.mut.Unlock()
	drained := r.entries
	r.entries = make(map[uint32]*Entry)
	entriesGauge.Sub(float64(len(drained)))
	return drained
}
