// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package store

import (
	"context"
	"fmt"
	"time"
)

// dimensionTable maps a bucket dimension name to its table and dimension
// column, or "" for stats_global which has no dimension column.
type dimensionTable struct {
	table  string
	column string
}

var dimensionTables = map[string]dimensionTable{
	"global":           {table: "stats_global"},
	"server":           {table: "stats_by_server", column: "server"},
	"channel":          {table: "stats_by_channel", column: "channel"},
	"country":          {table: "stats_by_country", column: "country"},
	"protocol":         {table: "stats_by_protocol", column: "protocol"},
	"user_agent_class": {table: "stats_by_user_agent", column: "user_agent_class"},
}

const statsColumns = `
	sessions_started BIGINT NOT NULL DEFAULT 0,
	sessions_closed BIGINT NOT NULL DEFAULT 0,
	total_bytes BIGINT NOT NULL DEFAULT 0,
	bandwidth_bps BIGINT NOT NULL DEFAULT 0,
	watch_time_seconds BIGINT NOT NULL DEFAULT 0,
	unique_users BIGINT NOT NULL DEFAULT 0,
	peak_concurrent BIGINT NOT NULL DEFAULT 0`

func (db *DB) createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stats_global (
			minute TIMESTAMP PRIMARY KEY,%s
		)`, statsColumns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stats_by_server (
			minute TIMESTAMP NOT NULL,
			server VARCHAR NOT NULL,%s,
			PRIMARY KEY (minute, server)
		)`, statsColumns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stats_by_channel (
			minute TIMESTAMP NOT NULL,
			channel VARCHAR NOT NULL,%s,
			PRIMARY KEY (minute, channel)
		)`, statsColumns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stats_by_country (
			minute TIMESTAMP NOT NULL,
			country VARCHAR NOT NULL,%s,
			PRIMARY KEY (minute, country)
		)`, statsColumns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stats_by_protocol (
			minute TIMESTAMP NOT NULL,
			protocol VARCHAR NOT NULL,%s,
			PRIMARY KEY (minute, protocol)
		)`, statsColumns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stats_by_user_agent (
			minute TIMESTAMP NOT NULL,
			user_agent_class VARCHAR NOT NULL,%s,
			PRIMARY KEY (minute, user_agent_class)
		)`, statsColumns),
		`CREATE TABLE IF NOT EXISTS active_sessions (
			id VARCHAR PRIMARY KEY,
			server VARCHAR NOT NULL,
			channel VARCHAR NOT NULL,
			country VARCHAR NOT NULL,
			protocol VARCHAR NOT NULL,
			user_agent VARCHAR NOT NULL,
			user_agent_class VARCHAR NOT NULL,
			user_id VARCHAR NOT NULL,
			ip VARCHAR NOT NULL,
			opened_at TIMESTAMP NOT NULL,
			last_seen_at TIMESTAMP NOT NULL,
			bytes BIGINT NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed executing schema statement: %w", err)
		}
	}
	return nil
}
