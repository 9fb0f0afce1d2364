// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

// Package snapshot implements the crash-recovery protocol: a periodic
// Snapshotter that persists the live-session table, and a Recovery step
// that rehydrates it at process start before intake is enabled.
package snapshot

import (
	"context"
	"time"

	"github.com/tomtom215/streamstat-engine/internal/logging"
	"github.com/tomtom215/streamstat-engine/internal/metrics"
	"github.com/tomtom215/streamstat-engine/internal/sessions"
)

// Store is the subset of *store.DB the snapshotter and recovery depend on.
type Store interface {
	UpsertActiveSession(ctx context.Context, s sessions.Session) error
	DeleteActiveSessionsNotIn(ctx context.Context, liveIDs []string) error
	LoadActiveSessions(ctx context.Context) ([]sessions.Session, error)
}

// Manager is the subset of *sessions.Manager the snapshotter and recovery
// depend on.
type Manager interface {
	SnapshotLive() []sessions.Session
	Restore(sessionList []sessions.Session) error
}

// Config controls the snapshotter's cadence and recovery's staleness
// policy.
type Config struct {
	// Interval between snapshot writes; defaults to 30s.
	Interval time.Duration
	// StaleHorizon discards a rehydrated session whose OpenedAt is older
	// than this, at recovery time. Zero disables the check.
	StaleHorizon time.Duration
}

// Snapshotter periodically writes the live-session table to the store
// using a two-phase upsert-then-delete protocol.
type Snapshotter struct {
	cfg     Config
	manager Manager
	store   Store
}

// New creates a Snapshotter.
func New(cfg Config, manager Manager, store Store) *Snapshotter {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Snapshotter{cfg: cfg, manager: manager, store: store}
}

// Serve runs the snapshot loop until ctx is canceled.
func (s *Snapshotter) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.writeOnce(ctx)
		}
	}
}

// Flush performs one final snapshot write, used during graceful shutdown.
func (s *Snapshotter) Flush(ctx context.Context) {
	s.writeOnce(ctx)
}

func (s *Snapshotter) writeOnce(ctx context.Context) {
	start := time.Now()
	live := s.manager.SnapshotLive()

	ids := make([]string, 0, len(live))
	for _, session := range live {
		if err := s.store.UpsertActiveSession(ctx, session); err != nil {
			logging.Error().Err(err).Str("session_id", session.ID).Msg("failed to upsert active session snapshot")
			continue
		}
		ids = append(ids, session.ID)
	}

	if err := s.store.DeleteActiveSessionsNotIn(ctx, ids); err != nil {
		logging.Error().Err(err).Msg("failed to prune active_sessions of ended sessions")
	}

	metrics.SnapshotRowsWritten.Add(float64(len(ids)))
	metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
}

// Recover loads the active_sessions table and restores it into manager.
// It must run before the HTTP intake server starts accepting requests
//. Sessions whose OpenedAt predates the stale-session horizon are
// discarded rather than restored.
func Recover(ctx context.Context, cfg Config, manager Manager, store Store) error {
	start := time.Now()
	defer func() {
		metrics.RecoveryDuration.Observe(time.Since(start).Seconds())
	}()

	rows, err := store.LoadActiveSessions(ctx)
	if err != nil {
		return err
	}

	kept := rows[:0:0]
	var discarded int
	now := time.Now()
	for _, session := range rows {
		if cfg.StaleHorizon > 0 && now.Sub(session.OpenedAt) > cfg.StaleHorizon {
			discarded++
			continue
		}
		kept = append(kept, session)
	}

	if err := manager.Restore(kept); err != nil {
		return err
	}

	metrics.RecoveryRestoredSessions.Set(float64(len(kept)))
	metrics.RecoveryDiscardedStaleSessions.Add(float64(discarded))
	logging.Info().Int("restored", len(kept)).Int("discarded_stale", discarded).Msg("recovery complete")
	return nil
}
