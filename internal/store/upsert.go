// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package store

import (
	"context"
	"fmt"

	"github.com/tomtom215/streamstat-engine/internal/bucket"
)

// ErrUnknownDimension is returned by UpsertRow for a dimension name the
// store does not have a table for.
type ErrUnknownDimension struct {
	Dimension bucket.DimensionName
}

func (e ErrUnknownDimension) Error() string {
	return fmt.Sprintf("store: unknown dimension %q", e.Dimension)
}

// UpsertRow persists one aggregator row, overwriting any existing row for
// the same (minute, dimension-value) primary key.
func (db *DB) UpsertRow(ctx context.Context, row bucket.Row) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	dt, ok := dimensionTables[string(row.Dimension)]
	if !ok {
		return ErrUnknownDimension{Dimension: row.Dimension}
	}

	var query string
	var args []interface{}

	if dt.column == "" {
		query = `INSERT INTO ` + dt.table + ` (
			minute, sessions_started, sessions_closed, total_bytes,
			bandwidth_bps, watch_time_seconds, unique_users, peak_concurrent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (minute) DO UPDATE SET
			sessions_started = EXCLUDED.sessions_started,
			sessions_closed = EXCLUDED.sessions_closed,
			total_bytes = EXCLUDED.total_bytes,
			bandwidth_bps = EXCLUDED.bandwidth_bps,
			watch_time_seconds = EXCLUDED.watch_time_seconds,
			unique_users = EXCLUDED.unique_users,
			peak_concurrent = EXCLUDED.peak_concurrent`
		args = []interface{}{
			row.Minute, row.SessionsStarted, row.SessionsClosed, row.TotalBytes,
			row.BandwidthBps, row.WatchTimeSeconds, row.UniqueUsers, row.PeakConcurrent,
		}
	} else {
		query = `INSERT INTO ` + dt.table + ` (
			minute, ` + dt.column + `, sessions_started, sessions_closed, total_bytes,
			bandwidth_bps, watch_time_seconds, unique_users, peak_concurrent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (minute, ` + dt.column + `) DO UPDATE SET
			sessions_started = EXCLUDED.sessions_started,
			sessions_closed = EXCLUDED.sessions_closed,
			total_bytes = EXCLUDED.total_bytes,
			bandwidth_bps = EXCLUDED.bandwidth_bps,
			watch_time_seconds = EXCLUDED.watch_time_seconds,
			unique_users = EXCLUDED.unique_users,
			peak_concurrent = EXCLUDED.peak_concurrent`
		args = []interface{}{
			row.Minute, row.Value, row.SessionsStarted, row.SessionsClosed, row.TotalBytes,
			row.BandwidthBps, row.WatchTimeSeconds, row.UniqueUsers, row.PeakConcurrent,
		}
	}

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert %s row: %w", dt.table, err)
	}
	return nil
}

// UpsertRows persists every row, short-circuiting on the first error. The
// caller (the aggregator) is responsible for retry/circuit-breaker policy.
func (db *DB) UpsertRows(ctx context.Context, rows []bucket.Row) error {
	for _, row := range rows {
		if err := db.UpsertRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
