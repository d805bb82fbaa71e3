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

// Package mime is the static well-known MIME type registry: a single
// byte, high bit set, standing in for a MIME string inside composite
// metadata.
package mime

// ID is a well-known MIME identifier, 0x00..0x7F.
type ID byte

// WellKnownBit marks a composite-metadata MIME header byte as carrying
// a well-known ID rather than an inline string length.
const WellKnownBit = 0x80

var idToString = map[ID]string{
	0x00: "application/avro",
	0x01: "application/cbor",
	0x02: "application/graphql",
	0x03: "application/gzip",
	0x04: "application/javascript",
	0x05: "application/json",
	0x06: "application/octet-stream",
	0x07: "application/pdf",
	0x08: "application/vnd.apache.thrift.binary",
	0x09: "application/vnd.google.protobuf",
	0x0A: "application/xml",
	0x0B: "application/zip",
	0x0C: "audio/aac",
	0x0D: "audio/mp3",
	0x0E: "audio/mp4",
	0x0F: "audio/mpeg3",
	0x10: "audio/mpeg",
	0x11: "audio/ogg",
	0x12: "audio/opus",
	0x13: "audio/vnd.wave",
	0x14: "image/bmp",
	0x15: "image/gif",
	0x16: "image/heic-sequence",
	0x17: "image/heic",
	0x18: "image/heif-sequence",
	0x19: "image/heif",
	0x1A: "image/jpeg",
	0x1B: "image/png",
	0x1C: "image/tiff",
	0x1D: "multipart/mixed",
	0x1E: "text/css",
	0x1F: "text/csv",
	0x20: "text/html",
	0x21: "text/plain",
	0x22: "text/xml",
	0x23: "video/H264",
	0x24: "video/H265",
	0x25: "video/VP8",
	0x26: "application/x-hessian",
	0x27: "application/x-java-object",
	0x28: "application/cloudevents+json",
	0x7A: "message/x.rsocket.mime-type.v0",
	0x7B: "message/x.rsocket.accept-mime-types.v0",
	0x7C: "message/x.rsocket.authentication.v0",
	0x7D: "message/x.rsocket.tracing-zipkin.v0",
	0x7E: "message/x.rsocket.routing.v0",
	0x7F: "message/x.rsocket.composite-metadata.v0",
}

var stringToID map[string]ID

func init() {
	stringToID = make(map[string]ID, len(idToString))
	for id, s := range idToString {
		stringToID[s] = id
	}
}

// String resolves a well-known ID to its MIME string, and reports
// whether the ID is registered.
func String(id ID) (string, bool) {
	s, ok := idToString[id]
	return s, ok
}

// Lookup resolves a MIME string to its well-known ID, and reports
// whether it's registered. Unregistered strings must be carried
// as the inline-length form instead.
func Lookup(s string) (ID, bool) {
	id, ok := stringToID[s]
	return id, ok
}
