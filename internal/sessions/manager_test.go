// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package sessions

import (
	"sync"
	"testing"
	"time"
)

func newTestManager() *Manager {
	return New(Config{DeltaBufferCapacity: 1000, UniqueUserExactThreshold: 10_000})
}

func openEvent(id, server, channel, country, protocol, ua, userID string, at time.Time) Event {
	return Event{
		Kind:      EventPlayStarted,
		ID:        id,
		Server:    server,
		Channel:   channel,
		Country:   country,
		Protocol:  protocol,
		UserAgent: ua,
		UserID:    userID,
		Time:      at,
		OpenedAt:  at,
		Bytes:     0,
	}
}

func closeEvent(id string, bytes int64, at time.Time) Event {
	return Event{
		Kind:     EventPlayClosed,
		ID:       id,
		Time:     at,
		ClosedAt: at,
		Bytes:    bytes,
	}
}

// TestIngestDuplicateOpenRejected: a second play_started for the same
// session id is rejected, not double-counted.
func TestIngestDuplicateOpenRejected(t *testing.T) {
	m := newTestManager()
	now := time.Now().UTC()

	first := m.Ingest(openEvent("sess-1", "srv1", "ch1", "US", "hls", "curl/7.0", "u1", now))
	if !first.Accepted {
		t.Fatalf("first open should be accepted, got rejection=%s", first.Rejection)
	}

	second := m.Ingest(openEvent("sess-1", "srv1", "ch1", "US", "hls", "curl/7.0", "u1", now))
	if second.Accepted {
		t.Fatal("duplicate open should be rejected")
	}
	if second.Rejection != RejectionDuplicateOpen {
		t.Errorf("rejection = %s, want duplicate_open", second.Rejection)
	}
	if m.LiveCount() != 1 {
		t.Errorf("live count = %d, want 1 (duplicate must not double-count)", m.LiveCount())
	}
}

// TestIngestUnknownCloseRejected: a play_closed for a session id never
// opened is rejected.
func TestIngestUnknownCloseRejected(t *testing.T) {
	m := newTestManager()
	result := m.Ingest(closeEvent("ghost", 100, time.Now().UTC()))
	if result.Accepted {
		t.Fatal("close of unknown session should be rejected")
	}
	if result.Rejection != RejectionUnknownClose {
		t.Errorf("rejection = %s, want unknown_close", result.Rejection)
	}
}

// TestIngestMalformedOpenRejected covers: a play_started with a zero
// OpenedAt is rejected as malformed_time.
func TestIngestMalformedOpenRejected(t *testing.T) {
	m := newTestManager()
	ev := openEvent("sess-1", "srv1", "ch1", "US", "hls", "curl/7.0", "u1", time.Now().UTC())
	ev.OpenedAt = time.Time{}
	result := m.Ingest(ev)
	if result.Accepted {
		t.Fatal("malformed open should be rejected")
	}
	if result.Rejection != RejectionMalformedTime {
		t.Errorf("rejection = %s, want malformed_time", result.Rejection)
	}
}

// TestIngestMalformedCloseRejected covers: a play_closed with a zero
// ClosedAt is rejected as malformed_time.
func TestIngestMalformedCloseRejected(t *testing.T) {
	m := newTestManager()
	opened := time.Now().UTC()
	m.Ingest(openEvent("sess-1", "srv1", "ch1", "US", "hls", "curl/7.0", "u1", opened))

	// A zero ClosedAt is the only case manager.go itself rejects directly;
	// "before open" is clamped to zero watch time/bytes rather than
	// rejected, matching the close handler's non-negative clamps.
	ev := closeEvent("sess-1", 50, time.Time{})
	result := m.Ingest(ev)
	if result.Accepted {
		t.Fatal("zero ClosedAt should be rejected as malformed_time")
	}
	if result.Rejection != RejectionMalformedTime {
		t.Errorf("rejection = %s, want malformed_time", result.Rejection)
	}
}

// TestIngestOpenThenCloseRemovesFromLiveTable covers invariant: a closed
// session is no longer live.
func TestIngestOpenThenCloseRemovesFromLiveTable(t *testing.T) {
	m := newTestManager()
	now := time.Now().UTC()
	m.Ingest(openEvent("sess-1", "srv1", "ch1", "US", "hls", "curl/7.0", "u1", now))
	if m.LiveCount() != 1 {
		t.Fatalf("live count after open = %d, want 1", m.LiveCount())
	}
	result := m.Ingest(closeEvent("sess-1", 2048, now.Add(30*time.Second)))
	if !result.Accepted {
		t.Fatalf("close should be accepted, got rejection=%s", result.Rejection)
	}
	if m.LiveCount() != 0 {
		t.Errorf("live count after close = %d, want 0", m.LiveCount())
	}
}

// TestPeakConcurrentNeverDecreasesWithinMinute covers invariant: closing a
// session within the same minute it peaked must not lower the bucket's
// recorded peak_concurrent for that minute.
func TestPeakConcurrentNeverDecreasesWithinMinute(t *testing.T) {
	m := newTestManager()
	now := time.Now().UTC()

	m.Ingest(openEvent("a", "srv1", "ch1", "US", "hls", "curl", "u1", now))
	m.Ingest(openEvent("b", "srv1", "ch1", "US", "hls", "curl", "u2", now))
	m.Ingest(closeEvent("a", 10, now.Add(time.Second)))

	_, bucketRows := rotateAndRows(m, now.Truncate(time.Minute))
	global, ok := findRow(bucketRows, "global", "")
	if !ok {
		t.Fatal("expected a global row")
	}
	if global.PeakConcurrent != 2 {
		t.Errorf("global peak = %d, want 2 (must not decrease after close)", global.PeakConcurrent)
	}
}

// TestRestoreIsExactlyOnce: Restore must refuse a second call.
func TestRestoreIsExactlyOnce(t *testing.T) {
	m := newTestManager()
	if err := m.Restore(nil); err != nil {
		t.Fatalf("first restore should succeed, got %v", err)
	}
	if err := m.Restore(nil); err != ErrAlreadyRestored {
		t.Errorf("second restore error = %v, want ErrAlreadyRestored", err)
	}
}

// TestRestoreRehydratesLiveCounts covers: restored sessions contribute to
// liveCounts (and thus to peak_concurrent) without an accompanying
// sessions_started delta.
func TestRestoreRehydratesLiveCounts(t *testing.T) {
	m := newTestManager()
	restored := []Session{
		{ID: "r1", Server: "srv1", Channel: "ch1", Country: "US", Protocol: "hls", UAClass: "ios", UserID: "u1", OpenedAt: time.Now().UTC()},
	}
	if err := m.Restore(restored); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if m.LiveCount() != 1 {
		t.Fatalf("live count after restore = %d, want 1", m.LiveCount())
	}

	_, bucketRows := rotateAndRows(m, time.Now().UTC().Truncate(time.Minute))
	global, ok := findRow(bucketRows, "global", "")
	if !ok {
		t.Fatal("expected a flat-line global row from the restored live session")
	}
	if global.SessionsStarted != 0 {
		t.Errorf("restored session should not add a sessions_started delta, got %d", global.SessionsStarted)
	}
	if global.PeakConcurrent != 1 {
		t.Errorf("restored session should flat-line peak at 1, got %d", global.PeakConcurrent)
	}
}

// TestRotateMinuteDrainsDeltasAndReportsDrops covers the bounded delta
// buffer's overflow/drop-counter contract.
func TestRotateMinuteDrainsDeltasAndReportsDrops(t *testing.T) {
	m := New(Config{DeltaBufferCapacity: 2, UniqueUserExactThreshold: 10_000})
	now := time.Now().UTC()
	m.Ingest(openEvent("a", "srv1", "ch1", "US", "hls", "curl", "u1", now))
	m.Ingest(openEvent("b", "srv1", "ch1", "US", "hls", "curl", "u2", now))
	m.Ingest(openEvent("c", "srv1", "ch1", "US", "hls", "curl", "u3", now))

	_, deltas, dropped, _ := m.RotateMinute()
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if len(deltas) != 2 {
		t.Errorf("drained delta count = %d, want 2", len(deltas))
	}
}

// TestConcurrentIngestDoesNotCorruptLiveCount exercises the manager under
// concurrent open traffic; run with -race to validate the single mutex actually
// serializes the (live table, bucket, delta ring) triple.
func TestConcurrentIngestDoesNotCorruptLiveCount(t *testing.T) {
	m := newTestManager()
	now := time.Now().UTC()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := idFor(i)
			m.Ingest(openEvent(id, "srv1", "ch1", "US", "hls", "curl", "u", now))
		}(i)
	}
	wg.Wait()
	if m.LiveCount() != 50 {
		t.Errorf("live count = %d, want 50", m.LiveCount())
	}
}

func idFor(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return "sess-" + string(digits[i])
	}
	return "sess-" + string(digits[i/10]) + string(digits[i%10])
}

func rotateAndRows(m *Manager, minute time.Time) (dropped int64, rows []rowLike) {
	old, deltas, d, live := m.RotateMinute()
	old.ApplyDeltas(deltas)
	for _, r := range old.Rows(live, minute, 60) {
		rows = append(rows, rowLike{dimension: string(r.Dimension), value: r.Value, sessionsStarted: r.SessionsStarted, peakConcurrent: r.PeakConcurrent})
	}
	return d, rows
}

type rowLike struct {
	dimension       string
	value           string
	sessionsStarted int64
	peakConcurrent  int64
}

func findRow(rows []rowLike, dimension, value string) (rowLike, bool) {
	for _, r := range rows {
		if r.dimension == dimension && r.value == value {
			return r, true
		}
	}
	return rowLike{}, false
}
