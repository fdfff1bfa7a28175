// Package config loads, normalizes, and validates beatcache configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// BEATCACHE_SNAPSHOT_DIR. The Config type centralizes every knob the CLI needs:
// where warm-start snapshots live, where the lookup journal is kept, and how
// logs are written.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
