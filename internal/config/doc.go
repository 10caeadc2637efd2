// Package config provides YAML configuration loading and validation for the
// nexus daemon: session management channel settings, the background worker
// pool size, the operational HTTP server, and logging.
package config
