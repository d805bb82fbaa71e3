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

import "sync/atomic"

// idAllocator hands out a connection's requester-initiated stream ids:
// odd, starting at 1, for a client; even, starting at 2, for a server.
// pre selects pre-increment-then-read (server) over read-then-increment
// (client), the only way to get a literal first value of 0 to yield 2
// as its first allocated id rather than 0 itself.
type idAllocator struct {
	next atomic.Uint32
	pre  bool
}

func newIDAllocator(initial uint32, pre bool) *idAllocator {
	a := &idAllocator{pre: pre}
	a.next.Store(initial)
	return a
}

// Next returns the next stream id in this connection's sequence.
func (a *idAllocator) Next() uint32 {
	if a.pre {
		return a.next.Add(2)
	}
	for {
		cur := a.next.Load()
		if a.next.CompareAndSwap(cur, cur+2) {
			return cur
		}
	}
}
