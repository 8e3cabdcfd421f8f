/*
   Copyright 2026 The labuh authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Command labuhd is the orchestrator daemon process: it serves the
// HTTP/WS surface and runs the Metrics Collector as a background task
// (spec.md §9).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HasanH47/labuh/internal/access"
	"github.com/HasanH47/labuh/internal/bridge"
	"github.com/HasanH47/labuh/internal/config"
	"github.com/HasanH47/labuh/internal/engine"
	"github.com/HasanH47/labuh/internal/environment"
	"github.com/HasanH47/labuh/internal/httpapi"
	"github.com/HasanH47/labuh/internal/metrics"
	"github.com/HasanH47/labuh/internal/registry"
	"github.com/HasanH47/labuh/internal/runtime"
	"github.com/HasanH47/labuh/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:           "labuhd",
		Short:         "labuh orchestrator daemon",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(serveCommand(&configPath))

	if err := root.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func serveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and background metrics collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}
	logger := logrus.WithField("component", "labuhd")

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()

	if err := store.Migrate(sqlDB); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	db := sqlx.NewDb(sqlDB, "postgres")

	stacks := store.NewPostgresStackRepository(db, logger)
	resources := store.NewPostgresResourceRepository(db, logger)
	ms := metrics.NewPostgresStore(db, cfg.MetricsRetention(), logger)

	rp, err := runtime.NewDockerPort()
	if err != nil {
		return fmt.Errorf("connecting to container runtime: %w", err)
	}

	gate := access.New(rp, stacks)
	env := environment.NewStaticLookup(nil)
	creds := registry.NewKeychainLookup()

	eng := engine.New(stacks, resources, rp, gate, env, creds, logger)
	execBridge := bridge.NewExec(rp, gate, logger)
	ptyBridge := bridge.NewPTY(logger)

	collector := metrics.NewCollector(stacks, resources, ms, rp, cfg.CollectorInterval, logger)
	go collector.Run(ctx)

	srv := httpapi.NewServer(eng, ms, execBridge, ptyBridge, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("address", cfg.ListenAddr).Info("serving labuh API")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
