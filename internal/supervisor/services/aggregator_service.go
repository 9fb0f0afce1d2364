// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package services

import "context"

// Rotator matches *aggregator.Aggregator's lifecycle: Serve runs the
// minute-boundary rotation loop until ctx is canceled, and Flush performs
// one final rotate-and-persist for graceful shutdown.
type Rotator interface {
	Serve(ctx context.Context) error
	Flush(ctx context.Context)
}

// AggregatorService wraps the Aggregator as a supervised engine-layer
// service. Its Serve signature already matches suture.Service
// directly, so this wrapper exists only to name the service for logging
// and to run Flush on shutdown before the supervisor tears it down.
type AggregatorService struct {
	rotator Rotator
	name    string
}

// NewAggregatorService creates an AggregatorService.
func NewAggregatorService(rotator Rotator) *AggregatorService {
	return &AggregatorService{rotator: rotator, name: "aggregator"}
}

// Serve implements suture.Service.
func (s *AggregatorService) Serve(ctx context.Context) error {
	err := s.rotator.Serve(ctx)
	s.rotator.Flush(context.Background())
	return err
}

// String implements fmt.Stringer for logging.
func (s *AggregatorService) String() string {
	return s.name
}
