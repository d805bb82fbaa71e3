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

package fragmentation

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/rsocket/frame"
)

func TestSplitSingleFrameWhenUnderBudget(t *testing.T) {
	frames := Split(1, 1024, KindRequestResponse, 0, []byte("meta"), []byte("data"))
	require.Len(t, frames, 1)
	assert.False(t, frames[0].HasFollow())
}

func TestSplitAndJoinRoundTrip(t *testing.T) {
	metadata := bytes.Repeat([]byte("M"), 300)
	data := bytes.Repeat([]byte("D"), 500)

	frames := Split(1, MinMTU, KindRequestResponse, 0, metadata, data)
	require.Greater(t, len(frames), 1)

	for i, f := range frames {
		last := i == len(frames)-1
		assert.Equal(t, !last, f.HasFollow(), "frame %d follow flag", i)
	}

	joiner := NewJoiner(frames[0])
	var gotMeta, gotData []byte
	var ok bool
	for i := 1; i < len(frames); i++ {
		gotMeta, gotData, _, ok = joiner.Append(frames[i])
	}
	require.True(t, ok)
	assert.Equal(t, metadata, gotMeta)
	assert.Equal(t, data, gotData)
}

func TestSplitRequestStreamCarriesInitialN(t *testing.T) {
	frames := Split(3, MinMTU, KindRequestStream, 7, nil, bytes.Repeat([]byte("x"), 200))
	require.Greater(t, len(frames), 1)
	rs := frames[0].Body.(*frame.RequestStream)
	assert.Equal(t, uint32(7), rs.InitialRequestN)
}

func TestSplitResponsePayloadMarksNextAndComplete(t *testing.T) {
	frames := Split(5, MinMTU, KindResponsePayload, 0, nil, bytes.Repeat([]byte("y"), 200))
	require.Greater(t, len(frames), 1)

	last := frames[len(frames)-1]
	assert.True(t, last.HasComplete())
	for _, f := range frames {
		assert.True(t, f.HasNext() || f.Type() != frame.TypePayload)
	}
}

func TestSmallRequestFrameHasNoFollow(t *testing.T) {
	f := frame.NewRequestResponse(1, nil, []byte("small"))
	assert.False(t, f.HasFollow())
}

func TestJoinerEffectiveFlagsFromFirstFrame(t *testing.T) {
	frames := Split(1, MinMTU, KindRequestResponse, 0, nil, bytes.Repeat([]byte("z"), 200))
	require.Greater(t, len(frames), 1)

	joiner := NewJoiner(frames[0])
	var flags frame.Flags
	for i := 1; i < len(frames); i++ {
		_, _, flags, _ = joiner.Append(frames[i])
	}
	assert.False(t, flags.Has(frame.FlagFollow))
}
