// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

// Package aggregator implements the minute-boundary Aggregator: it rotates
// the Active Sessions Manager's current MinuteBucket on a wall-clock
// schedule, builds PersistedRows, and upserts them into the store with
// retry and circuit-breaker protection.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/streamstat-engine/internal/bucket"
	"github.com/tomtom215/streamstat-engine/internal/logging"
	"github.com/tomtom215/streamstat-engine/internal/metrics"
)

// Store is the subset of *store.DB the aggregator depends on.
type Store interface {
	UpsertRow(ctx context.Context, row bucket.Row) error
}

// Manager is the subset of *sessions.Manager the aggregator depends on.
type Manager interface {
	RotateMinute() (old *bucket.MinuteBucket, deltas []bucket.Delta, dropped int64, liveSnapshot map[bucket.DimensionName]map[string]int64)
}

// Config controls rotation cadence and store-write resilience.
type Config struct {
	// Interval between rotations; defaults to one minute.
	Interval time.Duration
	// RetryAttempts/RetryBaseDelay configure exponential backoff for a
	// single row's upsert. Every attempt runs through the circuit breaker,
	// so each failed attempt counts as a circuit-breaker failure.
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// Aggregator owns the wall-clock rotation timer and the store circuit
// breaker protecting upserts.
type Aggregator struct {
	cfg     Config
	manager Manager
	store   Store
	cb      *gobreaker.CircuitBreaker[any]
}

// New creates an Aggregator. manager is the Active Sessions Manager to
// rotate; store is the relational store to upsert rows into.
func New(cfg Config, manager Manager, store Store) *Aggregator {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}

	const cbName = "aggregator-store"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("from", from.String()).Str("to", to.String()).Msg("aggregator store circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Aggregator{cfg: cfg, manager: manager, store: store, cb: cb}
}

// Serve runs the rotation loop until ctx is canceled.
//
// The timer is recomputed from wall-clock time on every iteration rather
// than relying on a fixed-period ticker, so that GC pauses or slow
// upserts in one minute don't cause drift in when the next minute's
// rotation fires.
func (a *Aggregator) Serve(ctx context.Context) error {
	for {
		next := nextBoundary(time.Now(), a.cfg.Interval)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case fired := <-timer.C:
			if fired.Sub(next) > a.cfg.Interval {
				metrics.AggregatorSkewedRotations.Inc()
			}
			a.rotateAndPersist(context.Background(), next.Add(-a.cfg.Interval))
		}
	}
}

// Flush performs one final rotation and persist, used during graceful
// shutdown to ensure the in-progress minute is not lost.
func (a *Aggregator) Flush(ctx context.Context) {
	a.rotateAndPersist(ctx, time.Now().UTC().Truncate(a.cfg.Interval))
}

func (a *Aggregator) rotateAndPersist(ctx context.Context, minute time.Time) {
	start := time.Now()
	old, deltas, dropped, liveSnapshot := a.manager.RotateMinute()
	if dropped > 0 {
		logging.Warn().Int64("dropped_deltas", dropped).Msg("delta buffer overflow during rotation")
	}
	metrics.DeltaBufferDroppedTotal.Add(float64(dropped))

	old.ApplyDeltas(deltas)
	rows := old.Rows(liveSnapshot, minute, int64(a.cfg.Interval.Seconds()))
	for _, row := range rows {
		if err := a.persistWithRetry(ctx, row); err != nil {
			logging.Error().Err(err).Str("dimension", string(row.Dimension)).Str("value", row.Value).Msg("failed to persist aggregator row after retries")
			metrics.AggregatorPersistErrors.WithLabelValues(string(row.Dimension)).Inc()
			continue
		}
		metrics.AggregatorRowsPersisted.WithLabelValues(string(row.Dimension)).Inc()
	}

	metrics.AggregatorRotationDuration.Observe(time.Since(start).Seconds())
}

// persistWithRetry upserts one row with exponential backoff, wrapped in a
// circuit breaker shared across rows in this rotation.
func (a *Aggregator) persistWithRetry(ctx context.Context, row bucket.Row) error {
	var lastErr error
	delay := a.cfg.RetryBaseDelay

	for attempt := 0; attempt < a.cfg.RetryAttempts; attempt++ {
		_, err := a.cb.Execute(func() (any, error) {
			return nil, a.store.UpsertRow(ctx, row)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("aggregator: store circuit open: %w", err)
		}

		if attempt < a.cfg.RetryAttempts-1 {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("aggregator: upsert failed after %d attempts: %w", a.cfg.RetryAttempts, lastErr)
}

// nextBoundary returns the next instant that is an exact multiple of
// interval since the Unix epoch, strictly after now.
func nextBoundary(now time.Time, interval time.Duration) time.Time {
	truncated := now.Truncate(interval)
	if !truncated.After(now) {
		truncated = truncated.Add(interval)
	}
	return truncated
}
