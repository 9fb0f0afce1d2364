// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package bucket

import (
	"github.com/axiomhq/hyperloglog"
)

// uniqueUserSet counts distinct user ids for one bucket key. It starts as
// an exact set and, once the exact set would grow past threshold, switches
// permanently to a HyperLogLog sketch (standard error <=1%) so a single
// hot channel can't blow up memory.
type uniqueUserSet struct {
	threshold int
	exact     map[string]struct{}
	sketch    *hyperloglog.Sketch
}

func newUniqueUserSet(threshold int) *uniqueUserSet {
	if threshold <= 0 {
		threshold = 10_000
	}
	return &uniqueUserSet{
		threshold: threshold,
		exact:     make(map[string]struct{}),
	}
}

// Add records a user id's presence in this bucket key.
func (s *uniqueUserSet) Add(userID string) {
	if s.sketch != nil {
		s.sketch.Insert([]byte(userID))
		return
	}
	s.exact[userID] = struct{}{}
	if len(s.exact) > s.threshold {
		s.promoteToSketch()
	}
}

// promoteToSketch migrates every exactly-tracked user id into a HLL sketch
// and discards the exact set. Once promoted, a bucket key stays
// approximate for the rest of its minute.
func (s *uniqueUserSet) promoteToSketch() {
	sketch := hyperloglog.New16()
	for userID := range s.exact {
		sketch.Insert([]byte(userID))
	}
	s.sketch = sketch
	s.exact = nil
}

// Count returns the (possibly approximate) cardinality of this bucket
// key's user-id set.
func (s *uniqueUserSet) Count() uint64 {
	if s.sketch != nil {
		return s.sketch.Estimate()
	}
	return uint64(len(s.exact))
}
