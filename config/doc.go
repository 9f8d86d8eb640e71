// Package config loads the host-side configuration from YAML, with defaults
// merged underneath and OBJLINK_* environment variables layered on top.
package config
