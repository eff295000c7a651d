// Package config provides configuration loading for the Matric MCP
// gateway.
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
// variables. If configFile is empty, it searches for matric-mcp.yaml/.yml
// in standard locations. The search requires an explicit YAML extension so
// the binary itself (same base name, no extension) is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("matric-mcp")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: MATRIC_MCP_BACKEND_URL overrides
	// backend.url, and so on.
	viper.SetEnvPrefix("MATRIC_MCP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a matric-mcp config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".matric-mcp"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "matric-mcp"))
		}
	} else {
		paths = append(paths, "/etc/matric-mcp")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for matric-mcp.yaml
// or .yml. Returns the first match, or "" if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "matric-mcp"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all config keys for environment variable
// support. Example: MATRIC_MCP_SERVER_HTTP_ADDR overrides
// server.http_addr.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("transport")

	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.session_timeout")
	_ = viper.BindEnv("server.sweep_interval")
	_ = viper.BindEnv("server.tls_cert")
	_ = viper.BindEnv("server.tls_key")
	// Note: server.allowed_origins is an array; use the config file.

	_ = viper.BindEnv("backend.url")
	_ = viper.BindEnv("backend.api_key")
	_ = viper.BindEnv("backend.timeout")

	_ = viper.BindEnv("oauth.issuer")
	_ = viper.BindEnv("oauth.introspection_url")
	_ = viper.BindEnv("oauth.client_id")
	_ = viper.BindEnv("oauth.client_secret")
	_ = viper.BindEnv("oauth.negative_cache_ttl")

	_ = viper.BindEnv("rate_limit.enabled")
	_ = viper.BindEnv("rate_limit.requests_per_second")
	_ = viper.BindEnv("rate_limit.burst")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but
// does NOT validate. Use this when CLI flags may override fields (e.g.
// --dev) before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or "" when running on environment variables only.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
