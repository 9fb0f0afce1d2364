// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

/*
Package services provides suture.Service wrappers for streaming-stats engine components.

This package adapts existing application components to the suture v4 supervision
model, translating the HTTP server's ListenAndServe/Shutdown lifecycle and the
Serve/Flush lifecycle of the aggregator and snapshotter into suture's
context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (ListenAndServe/Shutdown to Serve, final Flush after Serve)
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

Aggregator (AggregatorService):
  - Wraps the minute-boundary rotation loop
  - Runs one final rotate-and-persist on shutdown

Snapshotter (SnapshotService):
  - Wraps the periodic crash-recovery persistence loop
  - Runs one final snapshot write on shutdown

# Usage Example

Creating and registering services:

	import (
	    "net/http"
	    "time"

	    "github.com/tomtom215/streamstat-engine/internal/supervisor"
	    "github.com/tomtom215/streamstat-engine/internal/supervisor/services"
	)

	func setupSupervisor(server *http.Server, agg *aggregator.Aggregator, snap *snapshot.Snapshotter) {
	    tree, _ := supervisor.NewSupervisorTree(logger, config)

	    // HTTP server with 30s shutdown timeout
	    httpSvc := services.NewHTTPServerService(server, 30*time.Second)
	    tree.AddAPIService(httpSvc)

	    // Aggregator and snapshotter
	    tree.AddEngineService(services.NewAggregatorService(agg))
	    tree.AddEngineService(services.NewSnapshotService(snap))

	    // Start supervision
	    tree.Serve(ctx)
	}

# Lifecycle Patterns

The package handles two lifecycle patterns:

ListenAndServe Pattern (HTTPServerService):

	type HTTPServer interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	// Wrapped as (simplified):
	func (h *HTTPServerService) Serve(ctx context.Context) error {
	    go h.server.ListenAndServe()
	    <-ctx.Done()
	    if err := h.server.Shutdown(shutdownCtx); err != nil {
	        return err
	    }
	    return ctx.Err()
	}

Serve/Flush Pattern (AggregatorService, SnapshotService):

	type Rotator interface {
	    Serve(ctx context.Context) error
	    Flush(ctx context.Context)
	}

	// Wrapped as:
	func (s *AggregatorService) Serve(ctx context.Context) error {
	    err := s.rotator.Serve(ctx)
	    s.rotator.Flush(context.Background())
	    return err
	}

Components with a Start/Stop or a blocking Run lifecycle have no wrapper in
this package.

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

Example error handling:

	func (s *AggregatorService) Serve(ctx context.Context) error {
	    err := s.rotator.Serve(ctx)
	    s.rotator.Flush(context.Background())
	    return err
	}

# Service Identification

All services implement fmt.Stringer for logging:

	func (s *HTTPServerService) String() string {
	    return "http-server"
	}

Suture uses this for log messages:

	INFO http-server: starting
	INFO http-server: stopped
	ERROR http-server: restarting after failure

# Testing

Services can be tested with mock components:

	type MockServer struct {
	    stop     chan struct{}
	    started  bool
	    shutdown bool
	}

	func (m *MockServer) ListenAndServe() error {
	    m.started = true
	    <-m.stop // Block until Shutdown closes stop
	    return http.ErrServerClosed
	}

	func (m *MockServer) Shutdown(ctx context.Context) error {
	    m.shutdown = true
	    close(m.stop)
	    return nil
	}

	func TestHTTPService(t *testing.T) {
	    mock := &MockServer{stop: make(chan struct{})}
	    svc := services.NewHTTPServerService(mock, time.Second)

	    ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	    defer cancel()

	    svc.Serve(ctx)

	    if !mock.started { t.Error("server not started") }
	    if !mock.shutdown { t.Error("server not shutdown") }
	}

# Thread Safety

All service wrappers are safe for concurrent use:
  - State is protected by mutexes where needed
  - Context cancellation is handled atomically
  - Multiple Serve calls are not supported (undefined behavior)

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
  - internal/aggregator: Aggregator wrapped by AggregatorService
  - internal/snapshot: Snapshotter wrapped by SnapshotService
*/
package services
