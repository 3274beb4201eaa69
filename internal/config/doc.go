// Package config loads, normalizes, and validates reel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and overlays REEL_* environment variables
// (optionally seeded from a .env file). The Config type centralizes every knob
// the daemon and CLI need: directories, worker pool sizing, the runner
// pipeline, notifications and remote ingestion.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
