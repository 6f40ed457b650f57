// Package config loads, normalizes, and validates the daemon configuration
// from TOML with environment variable fallbacks for secrets.
package config
