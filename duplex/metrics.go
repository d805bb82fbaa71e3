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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/packetd/rsocket/common"
	"github.com/packetd/rsocket/frame"
)

var (
	framesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "frames_sent_total",
			Help:      "Frames sent total, by frame type",
		},
		[]string{"type"},
	)

	framesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "frames_received_total",
			Help:      "Frames received total, by frame type",
		},
		[]string{"type"},
	)

	setupRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "setup_rejections_total",
			Help:      "SETUP frames rejected by the server-side acceptor",
		},
	)

	keepaliveRoundtrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "keepalive_roundtrips_total",
			Help:      "KEEPALIVE frames acknowledged by the peer",
		},
	)

	fragmentReassembliesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "fragment_reassemblies_in_flight",
			Help:      "Fragmented request/response chains currently being reassembled",
		},
	)
)

func incFramesSent(t frame.Type) {
	framesSent.WithLabelValues(t.String()).Inc()
}

func incFramesReceived(t frame.Type) {
	framesReceived.WithLabelValues(t.String()).Inc()
}
