// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package sessions

import "errors"

// RejectionKind is one of the typed rejection kinds the manager can return
// from ingest.
type RejectionKind string

const (
	RejectionNone         RejectionKind = ""
	RejectionDuplicateOpen RejectionKind = "duplicate_open"
	RejectionUnknownClose RejectionKind = "unknown_close"
	RejectionMalformedTime RejectionKind = "malformed_time"
	RejectionStale        RejectionKind = "stale"
)

// ErrAlreadyRestored is returned by Restore when called more than once;
// restore is permitted exactly once, before intake is enabled.
var ErrAlreadyRestored = errors.New("sessions: restore already called")
