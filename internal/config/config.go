// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package config

import "time"

// Config is the root configuration for the streaming-stats engine.
type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Engine    EngineConfig    `koanf:"engine"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Recovery  RecoveryConfig  `koanf:"recovery"`
}

// StoreConfig describes the relational store connection.
type StoreConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`
	PoolSize               int    `koanf:"pool_size"`
	PoolOverflow           int    `koanf:"pool_overflow"`
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
}

// EngineConfig holds the Sessions Manager/Aggregator/Snapshotter tunables.
type EngineConfig struct {
	// AggregationInterval is the minute-boundary aggregator cadence.
	AggregationInterval time.Duration `koanf:"aggregation_interval"`
	// SessionSyncInterval is the snapshotter cadence.
	SessionSyncInterval time.Duration `koanf:"session_sync_interval"`
	// DeltaBufferCapacity bounds the per-minute delta buffer.
	DeltaBufferCapacity int `koanf:"delta_buffer_capacity"`
	// UniqueUserExactThreshold is the per-bucket exact-set size above which
	// unique-user counting falls back to a HyperLogLog estimate.
	UniqueUserExactThreshold int `koanf:"unique_user_exact_threshold"`
	// StaleSessionHorizon discards rehydrated sessions older than this at
	// recovery time. Zero disables the check.
	StaleSessionHorizon time.Duration `koanf:"stale_session_horizon"`
	// ShutdownGracePeriod bounds the wait for in-flight ingests on SIGTERM.
	ShutdownGracePeriod time.Duration `koanf:"shutdown_grace_period"`
	// StoreRetryAttempts/StoreRetryBaseDelay configure the aggregator's
	// exponential backoff on transient store failures.
	StoreRetryAttempts  int           `koanf:"store_retry_attempts"`
	StoreRetryBaseDelay time.Duration `koanf:"store_retry_base_delay"`
}

// ServerConfig holds the HTTP intake server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
	// WebhookHMACSecret, if set, requires X-Webhook-Signature on /api/webhook.
	WebhookHMACSecret string `koanf:"webhook_hmac_secret"`
}

// LoggingConfig mirrors internal/logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// RecoveryConfig controls startup recovery behavior.
type RecoveryConfig struct {
	// FailOnError exits the process non-zero if recovery cannot complete.
	FailOnError bool `koanf:"fail_on_error"`
}
