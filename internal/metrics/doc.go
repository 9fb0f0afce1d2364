// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

/*
Package metrics provides Prometheus metrics collection and export for the
streaming-stats engine.

# Overview

The package provides metrics for:
  - HTTP/webhook intake latency and throughput
  - Ingest acceptance and rejection counts by kind
  - Aggregator rotation duration, rows persisted, and persist errors
  - Delta buffer occupancy and overflow drops
  - Snapshot and recovery duration
  - Store circuit breaker state transitions

# Metrics Endpoint

Metrics are exposed at GET /metrics in Prometheus text format.
*/
package metrics
