// Package config provides centralized configuration management for the
// payment daemon, covering storage backends, the notification outbox, chain
// endpoints, the scheduler cadence, and logging. Configuration is loaded
// from a JSON file with sensible defaults applied for omitted fields.
package config
