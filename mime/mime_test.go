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

package mime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringLookupRoundTrip(t *testing.T) {
	for id, s := range idToString {
		got, ok := String(id)
		assert.True(t, ok)
		assert.Equal(t, s, got)

		gotID, ok := Lookup(s)
		assert.True(t, ok)
		assert.Equal(t, id, gotID)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Lookup("application/x-not-registered")
	assert.False(t, ok)
}

func TestStringUnknownID(t *testing.T) {
	_, ok := String(ID(0x50))
	assert.False(t, ok)
}

func TestRoutingAndCompositeRangeBoundaries(t *testing.T) {
	_, ok := String(0x00)
	assert.True(t, ok)
	_, ok = String(0x28)
	assert.True(t, ok)
	_, ok = String(0x29)
	assert.False(t, ok)
	_, ok = String(0x7A)
	assert.True(t, ok)
	_, ok = String(0x7F)
	assert.True(t, ok)
}
