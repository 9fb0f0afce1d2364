// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

// Package sessions implements the Active Sessions Manager: the in-memory
// state machine that owns session lifecycle, deduplication, and recovery.
package sessions

import (
	"time"

	"github.com/tomtom215/streamstat-engine/internal/bucket"
)

// EventKind is the lifecycle event kind reported by a media origin server.
type EventKind string

const (
	EventPlayStarted EventKind = "play_started"
	EventPlayClosed  EventKind = "play_closed"
)

// Event is a single validated webhook event, already decoded and
// schema-checked by the transport boundary.
type Event struct {
	Time      time.Time
	Kind      EventKind
	ID        string
	Server    string
	Channel   string
	UserID    string
	IP        string
	Country   string
	Protocol  string
	Bytes     int64
	UserAgent string
	OpenedAt  time.Time
	// ClosedAt and Reason are only populated for EventPlayClosed.
	ClosedAt time.Time
	Reason   string
	// IngestedAt is neither set nor read by the manager. The minute an
	// event counts toward is the bucket that is current when Ingest runs
	// (the minute-of-arrival policy), not any timestamp on the event.
	IngestedAt time.Time
}

// Session represents one viewer-channel engagement.
type Session struct {
	ID           string
	Server       string
	Channel      string
	Country      string
	Protocol     string
	UserAgent    string
	UAClass      string
	UserID       string
	IP           string
	OpenedAt     time.Time
	LastSeenAt   time.Time
	Bytes        int64
	CloseReason  string
	Closed       bool
}

// Delta and DeltaKind (the append-only event derivative the manager emits
// into the delta ring for the aggregator to group at rotation time) live in
// package bucket, alongside the MinuteBucket that ultimately consumes them.

// IngestResult reports the outcome of a single ingest call.
type IngestResult struct {
	Accepted bool
	// Rejection is non-empty only when Accepted is false.
	Rejection RejectionKind
}
