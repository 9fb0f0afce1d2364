// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package store

import (
	"context"
	"fmt"

	"github.com/tomtom215/streamstat-engine/internal/sessions"
)

// UpsertActiveSession inserts or replaces one row in active_sessions,
// keyed by session id.
func (db *DB) UpsertActiveSession(ctx context.Context, s sessions.Session) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	const query = `INSERT INTO active_sessions (
		id, server, channel, country, protocol, user_agent, user_agent_class,
		user_id, ip, opened_at, last_seen_at, bytes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		server = EXCLUDED.server,
		channel = EXCLUDED.channel,
		country = EXCLUDED.country,
		protocol = EXCLUDED.protocol,
		user_agent = EXCLUDED.user_agent,
		user_agent_class = EXCLUDED.user_agent_class,
		user_id = EXCLUDED.user_id,
		ip = EXCLUDED.ip,
		opened_at = EXCLUDED.opened_at,
		last_seen_at = EXCLUDED.last_seen_at,
		bytes = EXCLUDED.bytes`

	_, err := db.conn.ExecContext(ctx, query,
		s.ID, s.Server, s.Channel, s.Country, s.Protocol, s.UserAgent, s.UAClass,
		s.UserID, s.IP, s.OpenedAt, s.LastSeenAt, s.Bytes,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert active session %s: %w", s.ID, err)
	}
	return nil
}

// DeleteActiveSessionsNotIn removes every active_sessions row whose id is
// not in liveIDs — the second phase of the Snapshotter's upsert-then-delete
// protocol.
func (db *DB) DeleteActiveSessionsNotIn(ctx context.Context, liveIDs []string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if len(liveIDs) == 0 {
		_, err := db.conn.ExecContext(ctx, `DELETE FROM active_sessions`)
		if err != nil {
			return fmt.Errorf("failed to clear active_sessions: %w", err)
		}
		return nil
	}

	placeholders := make([]byte, 0, len(liveIDs)*2)
	args := make([]interface{}, len(liveIDs))
	for i, id := range liveIDs {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM active_sessions WHERE id NOT IN (%s)`, string(placeholders))
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to prune active_sessions: %w", err)
	}
	return nil
}

// LoadActiveSessions reads every row from active_sessions, for startup
// recovery.
func (db *DB) LoadActiveSessions(ctx context.Context) ([]sessions.Session, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	const query = `SELECT id, server, channel, country, protocol, user_agent,
		user_agent_class, user_id, ip, opened_at, last_seen_at, bytes
		FROM active_sessions`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active_sessions: %w", err)
	}
	defer rows.Close()

	var out []sessions.Session
	for rows.Next() {
		var s sessions.Session
		if err := rows.Scan(
			&s.ID, &s.Server, &s.Channel, &s.Country, &s.Protocol, &s.UserAgent,
			&s.UAClass, &s.UserID, &s.IP, &s.OpenedAt, &s.LastSeenAt, &s.Bytes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan active_sessions row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
