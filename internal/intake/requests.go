// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

// Package intake is the HTTP transport boundary: it decodes, validates,
// and (optionally) authenticates incoming webhook events before handing
// them to the Active Sessions Manager, and serves the read-only stats,
// health, and metrics endpoints.
package intake

import (
	"fmt"
	"time"

	"github.com/tomtom215/streamstat-engine/internal/sessions"
)

// WebhookEvent is the wire shape of one media-origin-server webhook event.
// Validation tags follow the go-playground/validator v10 syntax used
// elsewhere in this codebase. closed_at and reason are required only on
// play_closed, so they aren't tagged "required" here — that check happens
// in toEvent, where the event kind is known.
type WebhookEvent struct {
	Time      string `json:"time" validate:"required"`
	Event     string `json:"event" validate:"required,oneof=play_started play_closed"`
	ID        string `json:"id" validate:"required"`
	Server    string `json:"server" validate:"required"`
	Media     string `json:"media" validate:"required"`
	UserID    string `json:"user_id"`
	IP        string `json:"ip"`
	Country   string `json:"country"`
	Proto     string `json:"proto"`
	Bytes     int64  `json:"bytes" validate:"min=0"`
	UserAgent string `json:"user_agent"`
	OpenedAt  int64  `json:"opened_at"`
	ClosedAt  int64  `json:"closed_at"`
	Reason    string `json:"reason"`
}

// toEvent converts a validated wire event into the sessions.Event the
// manager accepts. A play_closed event without closed_at or reason is an
// error. A zero opened_at becomes a zero time.Time, which manager.Ingest
// rejects as malformed_time.
func (w WebhookEvent) toEvent() (sessions.Event, error) {
	eventTime, err := time.Parse(time.RFC3339, w.Time)
	if err != nil {
		return sessions.Event{}, fmt.Errorf("invalid time %q: %w", w.Time, err)
	}
	if sessions.EventKind(w.Event) == sessions.EventPlayClosed && (w.ClosedAt <= 0 || w.Reason == "") {
		return sessions.Event{}, fmt.Errorf("play_closed event %q requires closed_at and reason", w.ID)
	}

	ev := sessions.Event{
		Time:      eventTime,
		Kind:      sessions.EventKind(w.Event),
		ID:        w.ID,
		Server:    w.Server,
		Channel:   w.Media,
		UserID:    w.UserID,
		IP:        w.IP,
		Country:   w.Country,
		Protocol:  w.Proto,
		Bytes:     w.Bytes,
		UserAgent: w.UserAgent,
	}
	if w.OpenedAt > 0 {
		ev.OpenedAt = time.UnixMilli(w.OpenedAt).UTC()
	}
	if w.ClosedAt > 0 {
		ev.ClosedAt = time.UnixMilli(w.ClosedAt).UTC()
	}
	ev.Reason = w.Reason
	return ev, nil
}
