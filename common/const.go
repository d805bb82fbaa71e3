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

package common

const (
	// App is the metrics/log namespace shared by every package.
	App = "rsocket"

	// Version is the protocol core's own release version, independent
	// of the RSocket wire protocol version carried in SETUP.
	Version = "v0.1.0"

	// DefaultScratchBufferSize is a scratch-buffer size constant. The
	// frame encoder does not read it: frame.Encode takes its buffers
	// from bytebufferpool's default pool, which sizes them itself.
	DefaultScratchBufferSize = 4096
)
