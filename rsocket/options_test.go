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

package rsocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptions_DataMimeType(t *testing.T) {
	assert.Equal(t, "text/plain", Options{"data_mime_type": "text/plain"}.DataMimeType("application/octet-stream"))
	assert.Equal(t, "application/octet-stream", Options{}.DataMimeType("application/octet-stream"))
	assert.Equal(t, "application/octet-stream", Options{"data_mime_type": ""}.DataMimeType("application/octet-stream"))
	assert.Equal(t, "application/octet-stream", Options{"data_mime_type": 42}.DataMimeType("application/octet-stream"))
}

func TestOptions_MetadataMimeType(t *testing.T) {
	assert.Equal(t, "message/x.rsocket.routing.v0", Options{"metadata_mime_type": "message/x.rsocket.routing.v0"}.MetadataMimeType("def"))
	assert.Equal(t, "def", Options{}.MetadataMimeType("def"))
	assert.Equal(t, "def", Options{"metadata_mime_type": []int{1, 2}}.MetadataMimeType("def"))
}

func TestClientBuilder_WithOptions(t *testing.T) {
	b := NewClientBuilder().WithOptions(Options{
		"data_mime_type":     "text/plain",
		"metadata_mime_type": "application/json",
	})
	assert.Equal(t, "text/plain", b.dataMIME)
	assert.Equal(t, "application/json", b.metaMIME)
}

func TestClientBuilder_WithOptions_KeepsExistingOnMissing(t *testing.T) {
	b := NewClientBuilder()
	b.dataMIME = "application/octet-stream"
	b.WithOptions(Options{})
	assert.Equal(t, "application/octet-stream", b.dataMIME)
}
