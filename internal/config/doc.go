// Package config loads, normalizes, and validates litsieve configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and resolves provider API keys from the
// environment (optionally seeded from a .env file). The Config type
// centralizes every knob the CLI and pipeline stages need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
