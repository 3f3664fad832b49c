// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmmproject/agentos/internal/httpapi"
	"github.com/dmmproject/agentos/internal/obs"
)

// ServeCmd starts the admin HTTP surface (internal/httpapi) over the same
// stores the other CLI verbs operate on directly.
type ServeCmd struct {
	Host    string `help:"Host to bind." default:"127.0.0.1"`
	Port    int    `help:"Port to listen on." default:"8080"`
	Metrics bool   `help:"Expose /metrics and record request metrics." default:"true" negatable:""`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	deps := httpapi.Deps{
		Graph:     app.Graph,
		Memories:  app.Memories,
		Conflicts: app.Conflicts,
		Resolver:  app.Resolver,
		Tasks:     app.Tasks,
		AgentOS:   app.AgentOS,
		Agents:    app.Agents,
		Skills:    app.Skills,
		Tools:     app.Tools,
		Usage:     app.Usage,
		Ready: func(context.Context) error {
			return nil
		},
	}
	if c.Metrics {
		deps.Recorder = obs.NewPrometheusRecorder(prometheus.DefaultRegisterer)
	}

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: httpapi.Router(deps),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	errCh := make(chan error, 1)

	go func() {
		slog.Info("agentos admin server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		slog.Info("shutting down")
	case err := <-errCh:
		return cliErr(err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return cliErr(err)
	}
	return nil
}
