// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package sessions

import (
	"sync"
	"time"

	"github.com/tomtom215/streamstat-engine/internal/bucket"
	"github.com/tomtom215/streamstat-engine/internal/classifier"
	"github.com/tomtom215/streamstat-engine/internal/logging"
)

// Config controls the manager's resource bounds.
type Config struct {
	// DeltaBufferCapacity bounds the per-minute delta ring.
	DeltaBufferCapacity int
	// UniqueUserExactThreshold is handed to each MinuteBucket.
	UniqueUserExactThreshold int
	// StaleHorizon is how far behind the wall clock an event's own
	// timestamp can be before it is logged as stale (one minute when zero).
	// It does not change acceptance: stale events are still counted in
	// the minute they were ingested in.
	StaleHorizon time.Duration
}

// Manager is the Active Sessions Manager. It exclusively owns the
// live-session table and the current MinuteBucket, and serializes all
// access to the (live-table, current-bucket, delta-buffer) triple behind
// a single mutex, per the synchronization contract.
type Manager struct {
	cfg Config

	mu            sync.Mutex
	live          map[string]*Session
	liveCounts    map[bucket.DimensionName]map[string]int64
	currentBucket *bucket.MinuteBucket
	deltas        *deltaRing
	restored      bool

	// minuteStartCounts is a copy of liveCounts taken when currentBucket was
	// created: the live count each dimension key carried *into* the current
	// minute. It seeds peak_concurrent at rotation so a minute whose only
	// event for a key is a close still reports the session as having been
	// live, rather than a peak of zero.
	minuteStartCounts map[bucket.DimensionName]map[string]int64
}

// New creates a Manager with an empty live table and a fresh MinuteBucket.
func New(cfg Config) *Manager {
	if cfg.DeltaBufferCapacity <= 0 {
		cfg.DeltaBufferCapacity = 100_000
	}
	if cfg.UniqueUserExactThreshold <= 0 {
		cfg.UniqueUserExactThreshold = 10_000
	}
	m := &Manager{
		cfg:        cfg,
		live:       make(map[string]*Session),
		liveCounts: newLiveCounts(),
		deltas:     newDeltaRing(cfg.DeltaBufferCapacity),
	}
	m.currentBucket = bucket.New(cfg.UniqueUserExactThreshold)
	m.minuteStartCounts = newLiveCounts()
	return m
}

func cloneLiveCounts(src map[bucket.DimensionName]map[string]int64) map[bucket.DimensionName]map[string]int64 {
	out := make(map[bucket.DimensionName]map[string]int64, len(src))
	for dim, values := range src {
		copied := make(map[string]int64, len(values))
		for v, c := range values {
			copied[v] = c
		}
		out[dim] = copied
	}
	return out
}

func newLiveCounts() map[bucket.DimensionName]map[string]int64 {
	counts := make(map[bucket.DimensionName]map[string]int64, len(bucket.Dimensions))
	for _, d := range bucket.Dimensions {
		counts[d] = make(map[string]int64)
	}
	return counts
}

// Ingest applies one validated event to the live table and current bucket,
// atomically with respect to any concurrent ingest, rotate, or snapshot
// call.
func (m *Manager) Ingest(ev Event) IngestResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Kind {
	case EventPlayStarted:
		return m.ingestOpenedLocked(ev)
	case EventPlayClosed:
		return m.ingestClosedLocked(ev)
	default:
		return IngestResult{Accepted: false, Rejection: RejectionMalformedTime}
	}
}

func (m *Manager) ingestOpenedLocked(ev Event) IngestResult {
	if _, live := m.live[ev.ID]; live {
		logging.Debug().Str("session_id", ev.ID).Msg("rejected duplicate_open")
		return IngestResult{Accepted: false, Rejection: RejectionDuplicateOpen}
	}
	if ev.OpenedAt.IsZero() {
		logging.Debug().Str("session_id", ev.ID).Msg("rejected malformed_time on play_started")
		return IngestResult{Accepted: false, Rejection: RejectionMalformedTime}
	}

	uaClass := string(classifier.Classify(ev.UserAgent))
	session := &Session{
		ID:         ev.ID,
		Server:     ev.Server,
		Channel:    ev.Channel,
		Country:    ev.Country,
		Protocol:   ev.Protocol,
		UserAgent:  ev.UserAgent,
		UAClass:    uaClass,
		UserID:     ev.UserID,
		IP:         ev.IP,
		OpenedAt:   ev.OpenedAt,
		LastSeenAt: ev.OpenedAt,
		Bytes:      ev.Bytes,
	}
	m.live[ev.ID] = session

	dims := dimsOf(session)
	newCounts := make(map[bucket.DimensionName]int64, len(bucket.Dimensions))
	for _, dim := range bucket.Dimensions {
		value := dims[dim]
		m.liveCounts[dim][value]++
		newCounts[dim] = m.liveCounts[dim][value]
	}
	m.currentBucket.RecordPeak(dims, newCounts)

	m.logStaleIfNeeded(ev)

	m.deltas.push(bucket.Delta{
		Kind:         bucket.DeltaOpened,
		Server:       session.Server,
		Channel:      session.Channel,
		Country:      session.Country,
		Protocol:     session.Protocol,
		UAClass:      session.UAClass,
		UserID:       session.UserID,
		EventInstant: ev.Time,
	})

	return IngestResult{Accepted: true}
}

func (m *Manager) ingestClosedLocked(ev Event) IngestResult {
	session, live := m.live[ev.ID]
	if !live {
		logging.Debug().Str("session_id", ev.ID).Msg("rejected unknown_close")
		return IngestResult{Accepted: false, Rejection: RejectionUnknownClose}
	}
	if ev.ClosedAt.IsZero() {
		logging.Debug().Str("session_id", ev.ID).Msg("rejected malformed_time on play_closed")
		return IngestResult{Accepted: false, Rejection: RejectionMalformedTime}
	}

	watchTime := ev.ClosedAt.Sub(session.OpenedAt)
	if watchTime < 0 {
		watchTime = 0
	}
	byteDelta := ev.Bytes - session.Bytes
	if byteDelta < 0 {
		byteDelta = 0
	}

	session.Bytes = ev.Bytes
	session.LastSeenAt = ev.ClosedAt
	session.CloseReason = ev.Reason
	session.Closed = true
	delete(m.live, ev.ID)

	dims := dimsOf(session)
	for _, dim := range bucket.Dimensions {
		value := dims[dim]
		if m.liveCounts[dim][value] > 0 {
			m.liveCounts[dim][value]--
		}
	}

	m.logStaleIfNeeded(ev)

	m.deltas.push(bucket.Delta{
		Kind:             bucket.DeltaClosed,
		Server:           session.Server,
		Channel:          session.Channel,
		Country:          session.Country,
		Protocol:         session.Protocol,
		UAClass:          session.UAClass,
		UserID:           session.UserID,
		ByteDelta:        byteDelta,
		WatchTimeSeconds: int64(watchTime.Seconds()),
		EventInstant:     ev.Time,
	})

	return IngestResult{Accepted: true}
}

// logStaleIfNeeded logs (at debug level only - it is not a discarding
// rejection) when an event's own timestamp is more than StaleHorizon (one
// minute when unset) behind the current wall clock. The minute-of-arrival policy means
// the event is still counted in the minute it was ingested in regardless.
func (m *Manager) logStaleIfNeeded(ev Event) {
	horizon := m.cfg.StaleHorizon
	if horizon <= 0 {
		horizon = time.Minute
	}
	if !ev.Time.IsZero() && time.Since(ev.Time) > horizon {
		logging.Debug().Str("session_id", ev.ID).Time("event_time", ev.Time).Msg("stale event counted in current minute")
	}
}

func dimsOf(s *Session) map[bucket.DimensionName]string {
	return map[bucket.DimensionName]string{
		bucket.DimGlobal:         bucket.GlobalKey,
		bucket.DimServer:         s.Server,
		bucket.DimChannel:        s.Channel,
		bucket.DimCountry:        s.Country,
		bucket.DimProtocol:       s.Protocol,
		bucket.DimUserAgentClass: s.UAClass,
	}
}

// SnapshotLive returns a point-in-time copy of every live session, for the
// periodic snapshot writer.
func (m *Manager) SnapshotLive() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.live))
	for _, s := range m.live {
		out = append(out, *s)
	}
	return out
}

// Restore rehydrates the live table from a prior snapshot. It must be
// called exactly once, before intake is enabled; subsequent calls fail
// with ErrAlreadyRestored.
//
// Restored sessions contribute to peak_concurrent starting with the next
// aggregator rotation (via the live-count maps below) but do not produce a
// sessions_started delta, since they were already started in a prior
// process.
func (m *Manager) Restore(sessionList []Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.restored {
		return ErrAlreadyRestored
	}
	m.restored = true

	for i := range sessionList {
		s := sessionList[i]
		cp := s
		m.live[cp.ID] = &cp
		dims := dimsOf(&cp)
		for _, dim := range bucket.Dimensions {
			m.liveCounts[dim][dims[dim]]++
		}
	}
	// Restore runs once before intake is enabled, so there is no minute in
	// progress yet to preserve a baseline for: the restored counts become
	// the start-of-minute snapshot for the very first bucket.
	m.minuteStartCounts = cloneLiveCounts(m.liveCounts)
	return nil
}

// RotateMinute atomically swaps the current MinuteBucket for a fresh one
// and drains the delta buffer. It returns the now-immutable old bucket, the
// drained deltas, the number of deltas dropped due to overflow since the
// last rotation, and a snapshot of the live counts per dimension key as
// they stood at the *start* of the minute just flushed (used by the old
// bucket's Rows to flat-line still-live keys with no events that minute,
// and to floor peak_concurrent for keys whose only event that minute was a
// close).
func (m *Manager) RotateMinute() (old *bucket.MinuteBucket, deltas []bucket.Delta, dropped int64, liveSnapshot map[bucket.DimensionName]map[string]int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old = m.currentBucket
	liveSnapshot = m.minuteStartCounts

	m.currentBucket = bucket.New(m.cfg.UniqueUserExactThreshold)
	deltas, dropped = m.deltas.drain()
	m.minuteStartCounts = cloneLiveCounts(m.liveCounts)

	return old, deltas, dropped, liveSnapshot
}

// LiveCount returns the current number of live sessions, used by
// GET /stats/active and by invariant tests.
func (m *Manager) LiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// ActiveBreakdown reports live session counts grouped by the same
// dimensions the aggregator tracks, for GET /stats/active.
func (m *Manager) ActiveBreakdown() (total int, byServer, byChannel, byCountry, byProtocol, byUAClass map[string]int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total = len(m.live)
	byServer = cloneCounts(m.liveCounts[bucket.DimServer])
	byChannel = cloneCounts(m.liveCounts[bucket.DimChannel])
	byCountry = cloneCounts(m.liveCounts[bucket.DimCountry])
	byProtocol = cloneCounts(m.liveCounts[bucket.DimProtocol])
	byUAClass = cloneCounts(m.liveCounts[bucket.DimUserAgentClass])
	return
}

func cloneCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}
