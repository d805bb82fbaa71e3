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

import "github.com/spf13/cast"

// Options is a loosely-typed option bag, the same shape as the
// teacher's common.Options, reused here so SETUP's MIME negotiation
// can be driven by untyped sources (a plugin manifest, flags parsed
// as strings, JSON decoded into map[string]any) without every caller
// writing its own type assertion.
type Options map[string]any

// DataMimeType coerces the "data_mime_type" entry to a string,
// returning def if it's absent or not coercible.
func (o Options) DataMimeType(def string) string {
	if v, err := cast.ToStringE(o["data_mime_type"]); err == nil && v != "" {
		return v
	}
	return def
}

// MetadataMimeType coerces the "metadata_mime_type" entry to a
// string, returning def if it's absent or not coercible.
func (o Options) MetadataMimeType(def string) string {
	if v, err := cast.ToStringE(o["metadata_mime_type"]); err == nil && v != "" {
		return v
	}
	return def
}

// WithOptions layers o's MIME-type overrides on top of whatever
// FromConfig or the explicit setters already established.
func (b *ClientBuilder) WithOptions(o Options) *ClientBuilder {
	b.dataMIME = o.DataMimeType(b.dataMIME)
	b.metaMIME = o.MetadataMimeType(b.metaMIME)
	return b
}
