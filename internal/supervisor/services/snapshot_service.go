// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package services

import "context"

// Snapshotter matches *snapshot.Snapshotter's lifecycle.
type Snapshotter interface {
	Serve(ctx context.Context) error
	Flush(ctx context.Context)
}

// SnapshotService wraps the Snapshotter as a supervised engine-layer
// service, writing one final snapshot on shutdown.
type SnapshotService struct {
	snapshotter Snapshotter
	name        string
}

// NewSnapshotService creates a SnapshotService.
func NewSnapshotService(snapshotter Snapshotter) *SnapshotService {
	return &SnapshotService{snapshotter: snapshotter, name: "snapshotter"}
}

// Serve implements suture.Service.
func (s *SnapshotService) Serve(ctx context.Context) error {
	err := s.snapshotter.Serve(ctx)
	s.snapshotter.Flush(context.Background())
	return err
}

// String implements fmt.Stringer for logging.
func (s *SnapshotService) String() string {
	return s.name
}
