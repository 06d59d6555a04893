// Package config provides configuration loading for the egress proxy.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for egressproxy.yaml/.yml
// in standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would otherwise match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("egressproxy")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: EGRESSPROXY_SERVER_PORT
	viper.SetEnvPrefix("EGRESSPROXY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for an egressproxy config file
// with an explicit YAML extension.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".egressproxy"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "egressproxy"))
		}
	} else {
		paths = append(paths, "/etc/egressproxy")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for egressproxy.yaml
// or .yml. Returns the full path of the first match, or empty string if
// none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "egressproxy"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all config keys for environment variable support.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.port")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.shutdown_grace")
	_ = viper.BindEnv("allowlist.path")
	_ = viper.BindEnv("upstream.base_url")
	_ = viper.BindEnv("upstream.timeout")
	_ = viper.BindEnv("store.bucket")
	_ = viper.BindEnv("store.region")
	_ = viper.BindEnv("store.endpoint")
	_ = viper.BindEnv("audit.diagnostic_level")
	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the Config.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file — continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or empty if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
