// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/streamstat-engine/internal/bucket"
	"github.com/tomtom215/streamstat-engine/internal/config"
	"github.com/tomtom215/streamstat-engine/internal/sessions"
)

// testDBSemaphore serializes DuckDB CGO connection creation across tests to
// avoid the intermittent hangs seen when many connections open at once.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	cfg := &config.StoreConfig{Path: ":memory:", MaxMemory: "512MB"}
	db, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertRowGlobalThenOverwrite(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	minute := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	row := bucket.Row{
		Dimension: bucket.DimGlobal, Value: "", Minute: minute,
		SessionsStarted: 1, PeakConcurrent: 1, UniqueUsers: 1,
	}
	if err := db.UpsertRow(ctx, row); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	var started, peak int64
	err := db.Conn().QueryRowContext(ctx,
		`SELECT sessions_started, peak_concurrent FROM stats_global WHERE minute = ?`, minute,
	).Scan(&started, &peak)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if started != 1 || peak != 1 {
		t.Errorf("got started=%d peak=%d, want 1,1", started, peak)
	}

	row.SessionsStarted = 2
	row.PeakConcurrent = 2
	if err := db.UpsertRow(ctx, row); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if err := db.Conn().QueryRowContext(ctx,
		`SELECT sessions_started, peak_concurrent FROM stats_global WHERE minute = ?`, minute,
	).Scan(&started, &peak); err != nil {
		t.Fatalf("query after overwrite failed: %v", err)
	}
	if started != 2 || peak != 2 {
		t.Errorf("after overwrite got started=%d peak=%d, want 2,2", started, peak)
	}

	var count int
	if err := db.Conn().QueryRowContext(ctx, `SELECT count(*) FROM stats_global`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1 (upsert must not duplicate)", count)
	}
}

func TestUpsertRowByChannel(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	minute := time.Now().UTC().Truncate(time.Minute)

	row := bucket.Row{Dimension: bucket.DimChannel, Value: "c1", Minute: minute, SessionsStarted: 3}
	if err := db.UpsertRow(ctx, row); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	var channel string
	var started int64
	err := db.Conn().QueryRowContext(ctx,
		`SELECT channel, sessions_started FROM stats_by_channel WHERE minute = ? AND channel = ?`, minute, "c1",
	).Scan(&channel, &started)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if channel != "c1" || started != 3 {
		t.Errorf("got channel=%s started=%d, want c1,3", channel, started)
	}
}

func TestUpsertRowUnknownDimension(t *testing.T) {
	db := setupTestDB(t)
	err := db.UpsertRow(context.Background(), bucket.Row{Dimension: "nonsense"})
	if err == nil {
		t.Fatal("expected an error for an unknown dimension")
	}
}

func TestActiveSessionUpsertAndDeleteNotIn(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s1 := sessions.Session{ID: "a", Server: "srv1", Channel: "c1", Country: "US", Protocol: "hls", UserAgent: "curl", UAClass: "streaming_server", UserID: "u1", IP: "1.1.1.1", OpenedAt: now, LastSeenAt: now}
	s2 := sessions.Session{ID: "b", Server: "srv1", Channel: "c1", Country: "US", Protocol: "hls", UserAgent: "curl", UAClass: "streaming_server", UserID: "u2", IP: "1.1.1.2", OpenedAt: now, LastSeenAt: now}

	if err := db.UpsertActiveSession(ctx, s1); err != nil {
		t.Fatalf("upsert s1 failed: %v", err)
	}
	if err := db.UpsertActiveSession(ctx, s2); err != nil {
		t.Fatalf("upsert s2 failed: %v", err)
	}

	loaded, err := db.LoadActiveSessions(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d sessions, want 2", len(loaded))
	}

	if err := db.DeleteActiveSessionsNotIn(ctx, []string{"a"}); err != nil {
		t.Fatalf("delete-not-in failed: %v", err)
	}
	loaded, err = db.LoadActiveSessions(ctx)
	if err != nil {
		t.Fatalf("load after delete failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "a" {
		t.Fatalf("after delete-not-in, got %d sessions, want exactly [a]", len(loaded))
	}
}

func TestConcurrentUpsertRowsDoNotRace(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	minute := time.Now().UTC().Truncate(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row := bucket.Row{Dimension: bucket.DimServer, Value: "srv1", Minute: minute, SessionsStarted: int64(i)}
			_ = db.UpsertRow(ctx, row)
		}(i)
	}
	wg.Wait()

	var count int
	if err := db.Conn().QueryRowContext(ctx, `SELECT count(*) FROM stats_by_server`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1 (same primary key must collapse to one row)", count)
	}
}
