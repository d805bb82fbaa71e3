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

import (
	"context"
	"time"

	"github.com/packetd/rsocket/frame"
	"github.com/packetd/rsocket/rsocketerrors"
)

// writeLoop is the connection's single frame producer onto the wire.
// It pulls from the outbound queue, sending a RESPOND KEEPALIVE probe
// whenever nothing else is pending for a full tick, and tears the
// connection down once the peer's lifetime budget has elapsed without
// an acknowledged round trip.
func (s *Socket) writeLoop(ctx context.Context) {
	for {
		v, ok := s.outbound.PopTimeout(s.keepalive)
		if !ok {
			select {
			case <-s.closed:
				return
			default:
			}
			if time.Since(lastAckTime(s)) > s.lifetime {
				s.closeWith(rsocketerrors.ConnectionException("keepalive lifetime exceeded"))
				return
			}
			s.enqueue(frame.NewKeepalive(0, nil, true))
			continue
		}

		f := v.(*frame.Frame)
		if isConnectionClosedSentinel(f) {
			return
		}

		if err := s.sink.Send(ctx, f); err != nil {
			s.closeWith(err)
			return
		}
	}
}

func lastAckTime(s *Socket) time.Time {
	return time.Unix(0, s.lastAckAt.Load())
}

// isConnectionClosedSentinel recognizes the internal marker Close
// pushes onto the outbound queue to wake a blocked writer loop.
func isConnectionClosedSentinel(f *frame.Frame) bool {
	if f.StreamID != 0 {
		return false
	}
	e, ok := f.Body.(*frame.Error)
	return ok && rsocketerrors.Code(e.Code) == rsocketerrors.CodeConnectionClosed
}
