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

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/rsocket/internal/pubsub"
)

func TestInsertGetRemove(t *testing.T) {
	r := New()
	e := &Entry{Kind: KindAwaitResponse, ResponseCh: make(chan Result, 1)}
	r.Insert(1, e)

	got, ok := r.Get(1)
	require.True(t, ok)
	assert.Same(t, e, got)
	assert.Equal(t, 1, r.Len())

	r.Remove(1)
	_, ok = r.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestTakeRemovesAndReturns(t *testing.T) {
	r := New()
	q := pubsub.NewQueue()
	r.Insert(3, &Entry{Kind: KindAwaitStream, Queue: q})

	e, ok := r.Take(3)
	require.True(t, ok)
	assert.Equal(t, KindAwaitStream, e.Kind)

	_, ok = r.Take(3)
	assert.False(t, ok)
}

func TestDrainAllClearsRegistry(t *testing.T) {
	r := New()
	r.Insert(1, &Entry{Kind: KindAwaitResponse})
	r.Insert(2, &Entry{Kind: KindAwaitStream})

	drained := r.DrainAll()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, r.Len())
}

func TestCancelRemovesEntry(t *testing.T) {
	r := New()
	r.Insert(5, &Entry{Kind: KindAwaitResponse})

	r.Cancel(5)

	_, ok := r.Get(5)
	assert.False(t, ok)
}
