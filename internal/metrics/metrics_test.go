// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIngestAcceptedAndRejectedCounters(t *testing.T) {
	IngestAcceptedTotal.Reset()
	IngestRejectedTotal.Reset()

	IngestAcceptedTotal.WithLabelValues("play_started").Inc()
	IngestAcceptedTotal.WithLabelValues("play_started").Inc()
	IngestRejectedTotal.WithLabelValues("play_started", "duplicate_open").Inc()

	if got := testutil.ToFloat64(IngestAcceptedTotal.WithLabelValues("play_started")); got != 2 {
		t.Errorf("accepted count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(IngestRejectedTotal.WithLabelValues("play_started", "duplicate_open")); got != 1 {
		t.Errorf("rejected count = %v, want 1", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("active requests = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("active requests = %v, want %v", got, before)
	}
}

func TestDeltaBufferGaugeAndDropCounter(t *testing.T) {
	DeltaBufferOccupancy.Set(42)
	if got := testutil.ToFloat64(DeltaBufferOccupancy); got != 42 {
		t.Errorf("occupancy = %v, want 42", got)
	}

	before := testutil.ToFloat64(DeltaBufferDroppedTotal)
	DeltaBufferDroppedTotal.Add(3)
	if got := testutil.ToFloat64(DeltaBufferDroppedTotal); got != before+3 {
		t.Errorf("dropped total = %v, want %v", got, before+3)
	}
}

func TestAggregatorRowsPersistedByDimension(t *testing.T) {
	AggregatorRowsPersisted.Reset()
	AggregatorRowsPersisted.WithLabelValues("global").Inc()
	AggregatorRowsPersisted.WithLabelValues("channel").Add(5)

	if got := testutil.ToFloat64(AggregatorRowsPersisted.WithLabelValues("global")); got != 1 {
		t.Errorf("global rows = %v, want 1", got)
	}
	if got := testutil.ToFloat64(AggregatorRowsPersisted.WithLabelValues("channel")); got != 5 {
		t.Errorf("channel rows = %v, want 5", got)
	}
}

func TestCircuitBreakerStateGauge(t *testing.T) {
	CircuitBreakerState.WithLabelValues("store").Set(StateToFloat(2))
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("store")); got != 2 {
		t.Errorf("circuit breaker state = %v, want 2", got)
	}
}

func TestConcurrentMetricRecording(t *testing.T) {
	IngestAcceptedTotal.Reset()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			IngestAcceptedTotal.WithLabelValues("play_started").Inc()
		}()
	}
	wg.Wait()
	if got := testutil.ToFloat64(IngestAcceptedTotal.WithLabelValues("play_started")); got != 100 {
		t.Errorf("accepted count = %v, want 100", got)
	}
}
