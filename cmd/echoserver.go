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

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/packetd/rsocket/confengine"
	"github.com/packetd/rsocket/examples/echo"
	"github.com/packetd/rsocket/internal/sigs"
	"github.com/packetd/rsocket/logger"
	"github.com/packetd/rsocket/responder"
	"github.com/packetd/rsocket/rsocket"
	"github.com/packetd/rsocket/server"
	"github.com/packetd/rsocket/transport/rsockettcp"
)

var echoServerConfigPath string

var echoServerCmd = &cobra.Command{
	Use:   "echo-server",
	Short: "Run a TCP RSocket server with a sample echo/stream/channel responder",
	Run: func(cmd *cobra.Command, args []string) {
		conf, err := confengine.LoadConfigPath(echoServerConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}

		diag, err := server.New(conf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to build diagnostics server: %v\n", err)
			os.Exit(1)
		}

		builder, err := rsocket.NewServerBuilder().FromConfig(conf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load rsocket config: %v\n", err)
			os.Exit(1)
		}

		var rsocketConfig rsocket.Config
		if err := conf.UnpackChild("rsocket", &rsocketConfig); err != nil || rsocketConfig.Address == "" {
			rsocketConfig.Network, rsocketConfig.Address = "tcp", ":7878"
		}

		ln, err := net.Listen(rsocketConfig.Network, rsocketConfig.Address)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to listen on %s: %v\n", rsocketConfig.Address, err)
			os.Exit(1)
		}

		srv := builder.
			Transport(rsockettcp.NewServerTransport(ln)).
			Acceptor(responder.Static(&echo.Responder{})).
			OnStart(func() { logger.Infof("echo-server listening on %s", ln.Addr()) }).
			Build()

		if diag != nil {
			diag.RegisterGetRoute("/debug/streams", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(srv.Stats())
			})
			go func() {
				if err := diag.ListenAndServe(); err != nil {
					logger.Errorf("diagnostics server stopped: %v", err)
				}
			}()
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			if err := srv.Serve(ctx); err != nil {
				logger.Errorf("echo-server stopped: %v", err)
			}
		}()

		<-sigs.Terminate()
		cancel()
		_ = srv.Close()
	},
	Example: "# rsocket echo-server --config rsocket.yaml",
}

func init() {
	echoServerCmd.Flags().StringVar(&echoServerConfigPath, "config", "rsocket.yaml", "Configuration file path")
	rootCmd.AddCommand(echoServerCmd)
}
