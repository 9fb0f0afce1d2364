// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

// Package main is the entry point for the streaming-stats engine.
//
// The engine ingests streaming-session lifecycle webhook events from media
// origin servers, maintains an in-memory Active Sessions Manager, derives
// per-minute counters across six dimensions, and persists them to DuckDB.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: load settings from environment variables and config files (Koanf v2)
//  2. Store: open DuckDB and ensure the stats/active_sessions schema exists
//  3. Recovery: rehydrate the Active Sessions Manager from the last snapshot
//     before the HTTP server starts accepting webhook traffic
//  4. Engine: start the Aggregator (minute-boundary rotation) and the
//     Snapshotter (periodic crash-recovery persistence) under a supervisor
//  5. HTTP Server: webhook intake, stats, health, and metrics endpoints
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new webhook requests
//   - Waits for in-flight requests to complete (bounded by ShutdownGracePeriod)
//   - Performs one final aggregator rotation and snapshot write
//   - Closes the store
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tomtom215/streamstat-engine/internal/aggregator"
	"github.com/tomtom215/streamstat-engine/internal/config"
	"github.com/tomtom215/streamstat-engine/internal/intake"
	"github.com/tomtom215/streamstat-engine/internal/logging"
	"github.com/tomtom215/streamstat-engine/internal/sessions"
	"github.com/tomtom215/streamstat-engine/internal/snapshot"
	"github.com/tomtom215/streamstat-engine/internal/store"
	"github.com/tomtom215/streamstat-engine/internal/supervisor"
	"github.com/tomtom215/streamstat-engine/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting streaming-stats engine")

	db, err := store.New(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Str("path", cfg.Store.Path).Msg("Store initialized")

	manager := sessions.New(sessions.Config{
		DeltaBufferCapacity:      cfg.Engine.DeltaBufferCapacity,
		UniqueUserExactThreshold: cfg.Engine.UniqueUserExactThreshold,
		StaleHorizon:             cfg.Engine.StaleSessionHorizon,
	})

	var recovering atomic.Bool
	recovering.Store(true)

	recoveryCfg := snapshot.Config{StaleHorizon: cfg.Engine.StaleSessionHorizon}
	recoveryCtx, recoveryCancel := context.WithTimeout(context.Background(), 60*time.Second)
	err = snapshot.Recover(recoveryCtx, recoveryCfg, manager, db)
	recoveryCancel()
	if err != nil {
		if cfg.Recovery.FailOnError {
			logging.Fatal().Err(err).Msg("Crash recovery failed")
		}
		logging.Error().Err(err).Msg("Crash recovery failed, starting with an empty session table")
	}
	recovering.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	agg := aggregator.New(aggregator.Config{
		Interval:       cfg.Engine.AggregationInterval,
		RetryAttempts:  cfg.Engine.StoreRetryAttempts,
		RetryBaseDelay: cfg.Engine.StoreRetryBaseDelay,
	}, manager, db)

	snapshotter := snapshot.New(snapshot.Config{
		Interval:     cfg.Engine.SessionSyncInterval,
		StaleHorizon: cfg.Engine.StaleSessionHorizon,
	}, manager, db)

	tree.AddEngineService(services.NewAggregatorService(agg))
	tree.AddEngineService(services.NewSnapshotService(snapshotter))
	logging.Info().Msg("Aggregator and snapshotter added to supervisor tree")

	webhookHandler := intake.NewHandler(manager, cfg.Server.WebhookHMACSecret, recovering.Load)
	statsHandler := intake.NewStatsHandler(manager)
	healthHandler := intake.NewHealthHandler(recovering.Load)
	router := intake.NewRouter(intake.RouterConfig{}, webhookHandler, statsHandler, healthHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Engine.ShutdownGracePeriod))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
