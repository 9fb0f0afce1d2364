// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package sessions

import "github.com/tomtom215/streamstat-engine/internal/bucket"

// deltaRing is a bounded ring buffer of bucket.Delta records. On overflow
// the oldest entry is dropped to make room for the newest, and a drop
// counter is incremented.
type deltaRing struct {
	buf     []bucket.Delta
	start   int
	size    int
	dropped int64
}

func newDeltaRing(capacity int) *deltaRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &deltaRing{buf: make([]bucket.Delta, capacity)}
}

func (r *deltaRing) push(d bucket.Delta) {
	if len(r.buf) == 0 {
		return
	}
	if r.size == len(r.buf) {
		r.start = (r.start + 1) % len(r.buf)
		r.dropped++
		r.size--
	}
	idx := (r.start + r.size) % len(r.buf)
	r.buf[idx] = d
	r.size++
}

// drain returns every buffered delta in insertion order, the number of
// drops since the last drain, and resets the ring.
func (r *deltaRing) drain() ([]bucket.Delta, int64) {
	out := make([]bucket.Delta, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	dropped := r.dropped
	r.start, r.size, r.dropped = 0, 0, 0
	return out, dropped
}
