// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

// Package bucket implements the in-memory MinuteBucket: the per-minute,
// per-dimension accumulator the Aggregator flushes to the relational store.
package bucket

import "time"

// DimensionName is one of the six breakdowns this engine tracks.
type DimensionName string

const (
	DimGlobal          DimensionName = "global"
	DimServer          DimensionName = "server"
	DimChannel         DimensionName = "channel"
	DimCountry         DimensionName = "country"
	DimProtocol        DimensionName = "protocol"
	DimUserAgentClass  DimensionName = "user_agent_class"
)

// Dimensions lists every dimension in a fixed order, useful for callers that
// need to iterate deterministically.
var Dimensions = []DimensionName{
	DimGlobal, DimServer, DimChannel, DimCountry, DimProtocol, DimUserAgentClass,
}

// GlobalKey is the sole value under the global dimension.
const GlobalKey = ""

// accumulator holds the running counters for one (dimension, value) key
// within a single minute.
type accumulator struct {
	sessionsStarted  int64
	sessionsClosed   int64
	totalBytes       int64
	watchTimeSeconds int64
	peakConcurrent   int64
	users            *uniqueUserSet
}

// DeltaKind mirrors the session lifecycle transitions the aggregator groups
// by dimension at rotation time.
type DeltaKind string

const (
	DeltaOpened DeltaKind = "opened"
	DeltaClosed DeltaKind = "closed"
)

// Delta is an append-only event derivative produced by the Active Sessions
// Manager and consumed by the aggregator's ApplyDeltas at minute rotation.
// peak_concurrent is deliberately absent here: it is tracked incrementally
// on the bucket via RecordPeak, synchronously with the live-count mutation
// it derives from, so it survives delta-buffer overflow intact.
type Delta struct {
	Kind DeltaKind

	Server   string
	Channel  string
	Country  string
	Protocol string
	UAClass  string
	UserID   string

	// ByteDelta is zero for an opened delta, and final_bytes - tracked_bytes
	// (floored at zero) for a closed delta.
	ByteDelta int64
	// WatchTimeSeconds is zero for opened, closed_at-opened_at clamped >=0 for closed.
	WatchTimeSeconds int64

	EventInstant time.Time
}

// Row is one flushed (dimension, value) row for a given minute, ready for
// the store's upsert.
type Row struct {
	Dimension        DimensionName
	Value            string
	Minute           time.Time
	SessionsStarted  int64
	SessionsClosed   int64
	TotalBytes       int64
	BandwidthBps     int64
	WatchTimeSeconds int64
	UniqueUsers      uint64
	PeakConcurrent   int64
}

// MinuteBucket accumulates the seven metrics for every (dimension, value)
// key observed during one wall-clock minute.
type MinuteBucket struct {
	exactUserThreshold int
	data               map[DimensionName]map[string]*accumulator
}

// New creates an empty MinuteBucket. exactUserThreshold bounds the exact
// unique-user set size per bucket key before falling back to a HyperLogLog
// estimate.
func New(exactUserThreshold int) *MinuteBucket {
	data := make(map[DimensionName]map[string]*accumulator, len(Dimensions))
	for _, d := range Dimensions {
		data[d] = make(map[string]*accumulator)
	}
	return &MinuteBucket{exactUserThreshold: exactUserThreshold, data: data}
}

func (b *MinuteBucket) acc(dim DimensionName, value string) *accumulator {
	a, ok := b.data[dim][value]
	if !ok {
		a = &accumulator{users: newUniqueUserSet(b.exactUserThreshold)}
		b.data[dim][value] = a
	}
	return a
}

// RecordPeak updates peak_concurrent for every dimension key in dims to
// max(current_peak, new_live_count). It is called synchronously from
// Ingest, atomically with the live-count mutation new_live_count derives
// from, which is why peak tracking does not wait for ApplyDeltas: it must
// stay correct even if the delta buffer later overflows.
func (b *MinuteBucket) RecordPeak(dims map[DimensionName]string, liveCounts map[DimensionName]int64) {
	for _, dim := range Dimensions {
		value := dims[dim]
		a := b.acc(dim, value)
		if newCount := liveCounts[dim]; newCount > a.peakConcurrent {
			a.peakConcurrent = newCount
		}
	}
}

// ApplyDeltas groups a rotation's drained Delta records into this bucket's
// per-(dimension,value) accumulators: sessions_started, sessions_closed,
// byte and watch-time totals, and unique users. Called once by the
// aggregator after RotateMinute, before Rows. Deltas dropped by the ring
// buffer on overflow are simply absent here, which is why overflow loses
// these counters but never peak_concurrent or live counts.
func (b *MinuteBucket) ApplyDeltas(deltas []Delta) {
	for _, d := range deltas {
		dims := map[DimensionName]string{
			DimGlobal:         GlobalKey,
			DimServer:         d.Server,
			DimChannel:        d.Channel,
			DimCountry:        d.Country,
			DimProtocol:       d.Protocol,
			DimUserAgentClass: d.UAClass,
		}
		for _, dim := range Dimensions {
			a := b.acc(dim, dims[dim])
			switch d.Kind {
			case DeltaOpened:
				a.sessionsStarted++
				a.users.Add(d.UserID)
			case DeltaClosed:
				a.sessionsClosed++
				a.totalBytes += d.ByteDelta
				a.watchTimeSeconds += d.WatchTimeSeconds
			}
		}
	}
}

// Rows builds the final persisted rows for this bucket. liveSnapshot is the
// live-count-per-(dimension,value) view taken at the *start* of this
// bucket's minute (i.e. at the previous rotation). It serves two purposes:
// dimension values with no events this minute but still-live sessions get a
// flat-line row with peak_concurrent equal to the live count, and keys that
// did see events this minute still have their peak floored at the live
// count they carried into the minute, so a minute whose only event for a
// key is a close (which never raises peak) doesn't report peak_concurrent
// as if the session had never been live.
func (b *MinuteBucket) Rows(liveSnapshot map[DimensionName]map[string]int64, minute time.Time, secondsInMinute int64) []Row {
	if secondsInMinute <= 0 {
		secondsInMinute = 60
	}
	var rows []Row
	for _, dim := range Dimensions {
		seen := make(map[string]struct{})
		for value, a := range b.data[dim] {
			seen[value] = struct{}{}
			if startCount := liveSnapshot[dim][value]; startCount > a.peakConcurrent {
				a.peakConcurrent = startCount
			}
			rows = append(rows, buildRow(dim, value, minute, secondsInMinute, a))
		}
		for value, liveCount := range liveSnapshot[dim] {
			if _, ok := seen[value]; ok || liveCount <= 0 {
				continue
			}
			a := &accumulator{peakConcurrent: liveCount, users: newUniqueUserSet(b.exactUserThreshold)}
			rows = append(rows, buildRow(dim, value, minute, secondsInMinute, a))
		}
	}
	return rows
}

func buildRow(dim DimensionName, value string, minute time.Time, secondsInMinute int64, a *accumulator) Row {
	return Row{
		Dimension:        dim,
		Value:            value,
		Minute:           minute,
		SessionsStarted:  a.sessionsStarted,
		SessionsClosed:   a.sessionsClosed,
		TotalBytes:       a.totalBytes,
		BandwidthBps:     a.totalBytes / secondsInMinute,
		WatchTimeSeconds: a.watchTimeSeconds,
		UniqueUsers:      a.users.Count(),
		PeakConcurrent:   a.peakConcurrent,
	}
}
