// Package config loads and validates streamstat-engine's configuration.
//
// Configuration is layered with Koanf v2: built-in defaults, then an
// optional YAML file, then environment variables (highest priority).
// Missing required values fail startup with a descriptive error.
package config
