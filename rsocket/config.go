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
	"time"

	"github.com/packetd/rsocket/confengine"
)

// Config is the engine-level tuning a YAML file can override,
// unpacked from a "rsocket" child block the same way server.Config is
// unpacked from a "server" block.
type Config struct {
	Network          string        `config:"network"`
	Address          string        `config:"address"`
	FragmentMTU      int           `config:"fragment_mtu"`
	KeepaliveTick    time.Duration `config:"keepalive_tick"`
	KeepaliveLife    time.Duration `config:"keepalive_lifetime"`
	DataMimeType     string        `config:"data_mime_type"`
	MetadataMimeType string        `config:"metadata_mime_type"`
}

func defaultConfig() Config {
	return Config{
		Network:          "tcp",
		Address:          ":7878",
		KeepaliveTick:    defaultKeepalive,
		KeepaliveLife:    defaultLifetime,
		DataMimeType:     "application/octet-stream",
		MetadataMimeType: "message/x.rsocket.routing.v0",
	}
}

// FromConfig applies the "rsocket" block of conf on top of
// defaultConfig, then threads its fields into b. A client reuses the
// same block for its keepalive/MIME defaults; Transport and Acceptor
// are still set explicitly, since a config file has no way to name a
// Go function.
func (b *ClientBuilder) FromConfig(conf *confengine.Config) (*ClientBuilder, error) {
	cfg, err := unpackConfig(conf)
	if err != nil {
		return nil, err
	}
	if cfg.FragmentMTU > 0 {
		b.Fragment(cfg.FragmentMTU)
	}
	b.Keepalive(cfg.KeepaliveTick, cfg.KeepaliveLife)
	b.DataMimeType(cfg.DataMimeType)
	b.MetadataMimeType(cfg.MetadataMimeType)
	return b, nil
}

// FromConfig applies the "rsocket" block of conf on top of
// defaultConfig, then threads its fields into b.
func (b *ServerBuilder) FromConfig(conf *confengine.Config) (*ServerBuilder, error) {
	cfg, err := unpackConfig(conf)
	if err != nil {
		return nil, err
	}
	if cfg.FragmentMTU > 0 {
		b.Fragment(cfg.FragmentMTU)
	}
	b.Keepalive(cfg.KeepaliveTick, cfg.KeepaliveLife)
	return b, nil
}

func unpackConfig(conf *confengine.Config) (Config, error) {
	cfg := defaultConfig()
	if conf == nil {
		return cfg, nil
	}
	if !conf.Has("rsocket") {
		return cfg, nil
	}
	if err := conf.UnpackChild("rsocket", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
