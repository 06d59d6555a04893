// Package config provides the egress proxy's configuration schema.
//
// Configuration is intentionally small: the proxy's behavior-shaping state
// (the allowlist, rate-limit windows) lives in dedicated files/memory, not
// here. This file configures only how the process boots: what port to
// listen on, where to find the allowlist, and where the object-store bucket
// lives. The audit trail always goes to stdout.
package config

import (
	"os"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for the egress proxy.
type Config struct {
	// Server configures the proxy's TCP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Allowlist configures where the domain/method/path allowlist is
	// loaded from.
	Allowlist AllowlistConfig `yaml:"allowlist" mapstructure:"allowlist"`

	// Upstream configures the external social-network backend the write
	// endpoints (/post, /vote) forward to.
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`

	// Store configures the object-storage bucket the memory-store API
	// persists blobs to.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Audit configures the internal diagnostic logger. The per-request
	// JSONL decision trail itself always goes to stdout; this only
	// controls the internal slog logger.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// DevMode enables verbose internal logging.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the proxy's listener.
type ServerConfig struct {
	// Port is the TCP port the proxy listens on. Defaults to 3128.
	Port int `yaml:"port" mapstructure:"port" validate:"omitempty,min=1,max=65535"`

	// LogLevel sets the minimum internal diagnostic log level.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// ShutdownGrace is how long the proxy waits for in-flight connections
	// to complete after receiving the shutdown signal, e.g. "10s".
	ShutdownGrace string `yaml:"shutdown_grace" mapstructure:"shutdown_grace" validate:"omitempty"`
}

// AllowlistConfig configures the C1 allowlist file.
type AllowlistConfig struct {
	// Path is the filesystem path to the allowlist JSON file. When unset it
	// defaults to $ALLOWLIST_CONFIG, then to ./allowlist.json.
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
}

// UpstreamConfig configures the action-API backend the write endpoints
// target.
type UpstreamConfig struct {
	// BaseURL is the base URL of the upstream social-network API, e.g.
	// "https://api.moltbook.example".
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// Timeout bounds every upstream call, e.g. "10s".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`
}

// StoreConfig configures the S3-backed object-store client.
type StoreConfig struct {
	Bucket   string `yaml:"bucket" mapstructure:"bucket" validate:"required"`
	Region   string `yaml:"region" mapstructure:"region" validate:"required"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// AuditConfig configures the internal diagnostic logger (startup,
// shutdown, reload messages) — distinct from the per-request JSONL audit
// trail, which is not configurable: it always writes to stdout.
type AuditConfig struct {
	// DiagnosticLevel is validated and defaulted but is not read when the
	// internal slog logger is built; that logger's level comes from
	// Server.LogLevel (and DevMode).
	DiagnosticLevel string `yaml:"diagnostic_level" mapstructure:"diagnostic_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3128
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ShutdownGrace == "" {
		c.Server.ShutdownGrace = "10s"
	}
	if c.Allowlist.Path == "" {
		c.Allowlist.Path = os.Getenv("ALLOWLIST_CONFIG")
	}
	if c.Allowlist.Path == "" {
		c.Allowlist.Path = "./allowlist.json"
	}
	if c.Upstream.Timeout == "" {
		c.Upstream.Timeout = "10s"
	}
	if c.Audit.DiagnosticLevel == "" {
		c.Audit.DiagnosticLevel = "info"
	}

	if c.DevMode && !viper.IsSet("server.log_level") {
		c.Server.LogLevel = "debug"
	}
}
