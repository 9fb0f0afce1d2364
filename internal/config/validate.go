// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package config

import "fmt"

// Validate checks that required configuration is present and sane. It
// fails fast with a descriptive error rather than letting the process
// start into an unusable state.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validateStore() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path (DUCKDB_PATH) is required")
	}
	if c.Store.PoolSize <= 0 {
		return fmt.Errorf("store.pool_size must be positive, got %d", c.Store.PoolSize)
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.AggregationInterval <= 0 {
		return fmt.Errorf("engine.aggregation_interval (AGGREGATION_INTERVAL_SECONDS) must be positive")
	}
	if c.Engine.SessionSyncInterval <= 0 {
		return fmt.Errorf("engine.session_sync_interval (SESSION_SYNC_INTERVAL_SECONDS) must be positive")
	}
	if c.Engine.DeltaBufferCapacity <= 0 {
		return fmt.Errorf("engine.delta_buffer_capacity must be positive")
	}
	if c.Engine.StoreRetryAttempts <= 0 {
		return fmt.Errorf("engine.store_retry_attempts must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port (HTTP_PORT) must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}
