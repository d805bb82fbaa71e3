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

package responder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/rsocket/duplex"
)

func TestEmpty_AllOperationsUnimplemented(t *testing.T) {
	e := Empty{}
	ctx := context.Background()

	_, err := e.RequestResponse(ctx, duplex.Payload{})
	assert.Error(t, err)

	_, err = e.RequestStream(ctx, duplex.Payload{})
	assert.Error(t, err)

	_, err = e.RequestChannel(ctx, duplex.Payload{}, nil)
	assert.Error(t, err)

	// MetadataPush/FireAndForget have no error to report; they must
	// simply not panic.
	e.MetadataPush(ctx, nil)
	e.FireAndForget(ctx, duplex.Payload{})
}

func TestFuncs_FallsBackToEmptyWhenFieldNil(t *testing.T) {
	f := Funcs{}
	ctx := context.Background()

	_, err := f.RequestResponse(ctx, duplex.Payload{})
	assert.Error(t, err)
}

func TestFuncs_UsesProvidedField(t *testing.T) {
	f := Funcs{
		RequestResponseFunc: func(_ context.Context, p duplex.Payload) (duplex.Payload, error) {
			return p, nil
		},
	}

	resp, err := f.RequestResponse(context.Background(), duplex.Payload{Data: []byte("hi")})
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), resp.Data)
}

func TestStatic_AlwaysReturnsSameResponder(t *testing.T) {
	r := Funcs{}
	acceptor := Static(r)

	got, err := acceptor(duplex.SetupPayload{}, nil)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}
