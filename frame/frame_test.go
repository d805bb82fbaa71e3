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

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/rsocket/rsocketerrors"
)

func roundTrip(t *testing.T, f *Frame) *Frame {
	t.Helper()
	encoded := Encode(f)
	decoded, n, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, f.StreamID, decoded.StreamID)
	assert.Equal(t, f.Flags, decoded.Flags)
	assert.Equal(t, f.Type(), decoded.Type())
	return decoded
}

func TestPayloadRoundTripCombinations(t *testing.T) {
	metadataVariants := [][]byte{nil, []byte("meta")}
	dataVariants := [][]byte{nil, []byte("data")}

	for _, md := range metadataVariants {
		for _, data := range dataVariants {
			for _, next := range []bool{true, false} {
				for _, complete := range []bool{true, false} {
					f := NewPayload(7, md, data, next, complete)
					decoded := roundTrip(t, f)
					body := decoded.Body.(*Payload)
					assert.Equal(t, md, body.Metadata)
					assert.Equal(t, data, body.Data)
					assert.Equal(t, next, decoded.HasNext())
					assert.Equal(t, complete, decoded.HasComplete())
				}
			}
		}
	}
}

func TestSetupRoundTrip(t *testing.T) {
	f := NewSetupBuilder(0).
		Keepalive(20_000_000_000).
		Lifetime(60_000_000_000).
		MIMEMetadata("application/json").
		MIMEData("application/cbor").
		Metadata([]byte("route")).
		Data([]byte("hello")).
		Build()

	decoded := roundTrip(t, f)
	s := decoded.Body.(*Setup)
	assert.Equal(t, uint16(1), s.VersionMajor)
	assert.Equal(t, uint32(20_000), s.KeepaliveMS)
	assert.Equal(t, uint32(60_000), s.LifetimeMS)
	assert.Equal(t, "application/json", s.MIMEMetadata)
	assert.Equal(t, "application/cbor", s.MIMEData)
	assert.Equal(t, []byte("route"), s.Metadata)
	assert.Equal(t, []byte("hello"), s.Data)
}

func TestSetupWithResumeToken(t *testing.T) {
	f := NewSetupBuilder(0).Token([]byte("resume-token")).Build()
	decoded := roundTrip(t, f)
	s := decoded.Body.(*Setup)
	assert.Equal(t, []byte("resume-token"), s.Token)
	assert.True(t, decoded.Flags.Has(FlagResume))
}

func TestRequestStreamRoundTrip(t *testing.T) {
	f := NewRequestStream(3, 100, []byte("m"), []byte("d"))
	decoded := roundTrip(t, f)
	rs := decoded.Body.(*RequestStream)
	assert.Equal(t, uint32(100), rs.InitialRequestN)
	assert.Equal(t, []byte("m"), rs.Metadata)
	assert.Equal(t, []byte("d"), rs.Data)
}

func TestRequestStreamDefaultsInitialNToMax(t *testing.T) {
	f := NewRequestStream(3, 0, nil, nil)
	assert.Equal(t, RequestMax, f.Body.(*RequestStream).InitialRequestN)
}

func TestRequestChannelRoundTrip(t *testing.T) {
	f := NewRequestChannel(5, 50, nil, []byte("d"))
	decoded := roundTrip(t, f)
	rc := decoded.Body.(*RequestChannel)
	assert.Equal(t, uint32(50), rc.InitialRequestN)
	assert.Nil(t, rc.Metadata)
	assert.Equal(t, []byte("d"), rc.Data)
}

func TestRequestNRoundTrip(t *testing.T) {
	f := NewRequestN(9, 42)
	decoded := roundTrip(t, f)
	assert.Equal(t, uint32(42), decoded.Body.(*RequestN).N)
}

func TestCancelRoundTrip(t *testing.T) {
	f := NewCancel(9)
	decoded := roundTrip(t, f)
	assert.IsType(t, &Cancel{}, decoded.Body)
}

func TestErrorRoundTrip(t *testing.T) {
	f := NewError(9, uint32(rsocketerrors.CodeApplicationError), []byte("boom"))
	decoded := roundTrip(t, f)
	e := decoded.Body.(*Error)
	assert.Equal(t, uint32(rsocketerrors.CodeApplicationError), e.Code)
	assert.Equal(t, []byte("boom"), e.Data)
}

func TestMetadataPushRoundTrip(t *testing.T) {
	f := NewMetadataPush([]byte("routing-metadata"))
	decoded := roundTrip(t, f)
	assert.Equal(t, []byte("routing-metadata"), decoded.Body.(*MetadataPush).Metadata)
	assert.Equal(t, uint32(0), decoded.StreamID)
}

func TestKeepaliveRoundTrip(t *testing.T) {
	f := NewKeepalive(0, []byte("ping"), true)
	decoded := roundTrip(t, f)
	assert.True(t, decoded.Flags.Has(FlagRespond))
	assert.Equal(t, []byte("ping"), decoded.Body.(*Keepalive).Data)
}

func TestResumeOKRoundTrip(t *testing.T) {
	f := NewResumeOK(0, 12345)
	decoded := roundTrip(t, f)
	assert.Equal(t, uint64(12345), decoded.Body.(*ResumeOK).Position)
}

func TestDecodeIncompleteFrameLeavesNoPartialResult(t *testing.T) {
	f := NewRequestResponse(1, []byte("m"), []byte("d"))
	encoded := Encode(f)

	for cut := 0; cut < len(encoded); cut++ {
		_, n, err := Decode(encoded[:cut])
		require.Error(t, err)
		assert.Equal(t, 0, n)
		rerr, ok := err.(*rsocketerrors.RSocketError)
		require.True(t, ok)
		assert.Equal(t, rsocketerrors.KindIncompleteFrame, rerr.Kind)
	}
}

func TestDecodeConcatenatedFramesYieldsEachInOrder(t *testing.T) {
	f1 := NewRequestResponse(1, nil, []byte("a"))
	f2 := NewCancel(1)
	f3 := NewPayload(1, nil, []byte("c"), true, true)

	var buf []byte
	buf = append(buf, Encode(f1)...)
	buf = append(buf, Encode(f2)...)
	buf = append(buf, Encode(f3)...)

	var got []*Frame
	for len(buf) > 0 {
		f, n, err := Decode(buf)
		require.NoError(t, err)
		got = append(got, f)
		buf = buf[n:]
	}

	require.Len(t, got, 3)
	assert.Equal(t, TypeRequestResponse, got[0].Type())
	assert.Equal(t, TypeCancel, got[1].Type())
	assert.Equal(t, TypePayload, got[2].Type())
}

func TestDecodeMaxU24LengthOnShortBufferFails(t *testing.T) {
	b := []byte{0xFF, 0xFF, 0xFF, 0, 0, 0, 0}
	_, _, err := Decode(b)
	require.Error(t, err)
}

func TestEncodeUnframedHasNoLengthPrefix(t *testing.T) {
	f := NewRequestResponse(1, nil, []byte("x"))
	framed := Encode(f)
	unframed := EncodeUnframed(f)
	assert.Equal(t, framed[lengthPrefixLen:], unframed)

	decoded, err := DecodeUnframed(unframed)
	require.NoError(t, err)
	assert.Equal(t, f.StreamID, decoded.StreamID)
}

func TestFrameTypeString(t *testing.T) {
	assert.Equal(t, "SETUP", TypeSetup.String())
	assert.Equal(t, "UNKNOWN", Type(0x3F).String())
}

func TestIsFollowable(t *testing.T) {
	f := NewRequestStream(1, 1, nil, []byte("x"))
	followable, isPayload := f.IsFollowable()
	assert.True(t, followable)
	assert.False(t, isPayload)

	p := NewPayload(1, nil, []byte("x"), true, false)
	followable, isPayload = p.IsFollowable()
	assert.True(t, followable)
	assert.True(t, isPayload)

	c := NewCancel(1)
	followable, isPayload = c.IsFollowable()
	assert.False(t, followable)
	assert.False(t, isPayload)
}
