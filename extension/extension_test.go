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

package extension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeRoundTripWellKnown(t *testing.T) {
	entries := []CompositeMetadataEntry{
		NewCompositeMetadataEntry("application/json", []byte(`{"a":1}`)),
		NewCompositeMetadataEntry("text/plain", []byte("hello")),
	}

	encoded := EncodeComposite(entries)
	decoded, err := DecodeComposite(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, entries[0].MIME, decoded[0].MIME)
	assert.Equal(t, entries[0].Payload, decoded[0].Payload)
	assert.Equal(t, entries[1].MIME, decoded[1].MIME)
	assert.Equal(t, entries[1].Payload, decoded[1].Payload)
}

func TestCompositeRoundTripCustomMIME(t *testing.T) {
	entries := []CompositeMetadataEntry{
		NewCompositeMetadataEntry("application/x-my-custom-type", []byte("payload")),
	}

	encoded := EncodeComposite(entries)
	// first byte must be an inline len-1, not the well-known high bit
	assert.Equal(t, byte(len(entries[0].MIME)-1), encoded[0])

	decoded, err := DecodeComposite(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, entries[0].MIME, decoded[0].MIME)
	assert.Equal(t, entries[0].Payload, decoded[0].Payload)
}

func TestCompositeDecodeEmpty(t *testing.T) {
	decoded, err := DecodeComposite(nil)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestCompositeDecodeTruncated(t *testing.T) {
	entries := []CompositeMetadataEntry{
		NewCompositeMetadataEntry("application/json", []byte("0123456789")),
	}
	encoded := EncodeComposite(entries)

	_, err := DecodeComposite(encoded[:len(encoded)-3])
	assert.Error(t, err)
}

func TestRoutingRoundTrip(t *testing.T) {
	rm := NewRoutingMetadataBuilder().Push("com.example.service").Push("method").Build()
	encoded := rm.Encode()

	decoded, err := DecodeRouting(encoded)
	require.NoError(t, err)
	assert.Equal(t, rm.Tags, decoded.Tags)
}

func TestRoutingDecodeTruncated(t *testing.T) {
	_, err := DecodeRouting([]byte{10, 'a', 'b'})
	assert.Error(t, err)
}

func TestRoutingDecodeEmpty(t *testing.T) {
	decoded, err := DecodeRouting(nil)
	require.NoError(t, err)
	assert.Empty(t, decoded.Tags)
}
