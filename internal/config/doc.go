// Package config loads, normalizes, and validates the TOML configuration
// driving the pipeline: library paths, external tool commands, encoding
// parameters, and cover lookup settings.
package config
