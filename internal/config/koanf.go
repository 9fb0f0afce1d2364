// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where a config file is searched for, in
// priority order. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/streamstat-engine/config.yaml",
	"/etc/streamstat-engine/config.yml",
}

// ConfigPathEnvVar overrides the search path entirely when set.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:                   "/data/streamstat.duckdb",
			MaxMemory:              "1GB",
			Threads:                0,
			PoolSize:               8,
			PoolOverflow:           4,
			PreserveInsertionOrder: false,
		},
		Engine: EngineConfig{
			AggregationInterval:      60 * time.Second,
			SessionSyncInterval:      30 * time.Second,
			DeltaBufferCapacity:      100_000,
			UniqueUserExactThreshold: 10_000,
			StaleSessionHorizon:      0,
			ShutdownGracePeriod:      10 * time.Second,
			StoreRetryAttempts:       3,
			StoreRetryBaseDelay:      time.Second,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			Timeout:           15 * time.Second,
			WebhookHMACSecret: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Recovery: RecoveryConfig{
			FailOnError: true,
		},
	}
}

// Load builds the layered configuration: defaults -> optional YAML file ->
// environment variables. Environment variables win.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// A bare integer in a *_SECONDS variable is a number of seconds.
	for envName, key := range map[string]string{
		"AGGREGATION_INTERVAL_SECONDS":  "engine.aggregation_interval",
		"SESSION_SYNC_INTERVAL_SECONDS": "engine.session_sync_interval",
	} {
		if secs, err := strconv.Atoi(os.Getenv(envName)); err == nil {
			if err := k.Set(key, time.Duration(secs)*time.Second); err != nil {
				return nil, fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps legacy-flat environment variable names to koanf paths.
var envMappings = map[string]string{
	"duckdb_path":                 "store.path",
	"duckdb_max_memory":           "store.max_memory",
	"duckdb_threads":              "store.threads",
	"store_pool_size":             "store.pool_size",
	"store_pool_overflow":         "store.pool_overflow",
	"store_preserve_order":        "store.preserve_insertion_order",
	"aggregation_interval_seconds": "engine.aggregation_interval",
	"session_sync_interval_seconds": "engine.session_sync_interval",
	"delta_buffer_capacity":       "engine.delta_buffer_capacity",
	"unique_user_exact_threshold": "engine.unique_user_exact_threshold",
	"stale_session_horizon":       "engine.stale_session_horizon",
	"shutdown_grace_period":       "engine.shutdown_grace_period",
	"store_retry_attempts":        "engine.store_retry_attempts",
	"store_retry_base_delay":      "engine.store_retry_base_delay",
	"http_host":                   "server.host",
	"http_port":                   "server.port",
	"http_timeout":                "server.timeout",
	"webhook_hmac_secret":         "server.webhook_hmac_secret",
	"log_level":                   "logging.level",
	"log_format":                  "logging.format",
	"log_caller":                  "logging.caller",
	"recovery_fail_on_error":      "recovery.fail_on_error",
}

// envTransformFunc rewrites SCREAMING_SNAKE env names into koanf dotted
// paths; names not in envMappings are dropped. Seconds-suffixed names map
// to duration fields: a duration string such as "60s" is parsed by the
// mapstructure duration hook, and a bare integer such as "60" is converted
// to seconds in Load.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
