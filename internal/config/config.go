// Package config provides configuration types for the Matric MCP gateway.
//
// The gateway is configured from a YAML file plus MATRIC_MCP_* environment
// variables. Two transports are supported: stdio (local, single client,
// API-key trust) and http (remote, OAuth bearer tokens, StreamableHTTP +
// legacy SSE bindings).
package config

import (
	"time"
)

// Transport values accepted in the top-level transport field.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the top-level gateway configuration.
type Config struct {
	// Transport selects the serving mode: "stdio" or "http".
	Transport string `yaml:"transport" mapstructure:"transport" validate:"omitempty,oneof=stdio http"`

	// Server configures the HTTP listener (http transport only).
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Backend configures the knowledge API the gateway fronts.
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`

	// OAuth configures bearer-token introspection (http transport only).
	OAuth OAuthConfig `yaml:"oauth" mapstructure:"oauth"`

	// RateLimit configures optional per-principal rate limiting.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// DevMode relaxes deployment checks (localhost issuer allowed) and
	// raises log verbosity.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on. Defaults to "127.0.0.1:8080"
	// (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level: "debug", "info", "warn",
	// "error". Defaults to "info". DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// SessionTimeout is how long a session may sit idle before it is
	// reaped (e.g. "30m"). Defaults to "30m".
	SessionTimeout string `yaml:"session_timeout" mapstructure:"session_timeout" validate:"omitempty"`

	// SweepInterval is how often the session store scans for idle
	// sessions (e.g. "1m"). Defaults to "1m".
	SweepInterval string `yaml:"sweep_interval" mapstructure:"sweep_interval" validate:"omitempty"`

	// AllowedOrigins lists browser origins accepted on the HTTP surface.
	// Empty blocks every request carrying an Origin header.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`

	// TLSCert and TLSKey enable TLS when both are set.
	TLSCert string `yaml:"tls_cert" mapstructure:"tls_cert"`
	TLSKey  string `yaml:"tls_key" mapstructure:"tls_key"`
}

// BackendConfig configures the knowledge API connection.
type BackendConfig struct {
	// URL is the knowledge API base URL (e.g. "https://api.fortemi.com").
	URL string `yaml:"url" mapstructure:"url" validate:"required,url"`

	// APIKey is the pre-shared credential used on the stdio transport.
	// HTTP sessions forward each principal's bearer token instead.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Timeout bounds each backend call (e.g. "30s"). Defaults to "30s".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`
}

// OAuthConfig configures RFC 7662 token introspection.
type OAuthConfig struct {
	// Issuer is the externally reachable base URL of the authorization
	// server. Clients resolve the well-known metadata documents against
	// it, so it must never be localhost in a deployed configuration.
	Issuer string `yaml:"issuer" mapstructure:"issuer" validate:"omitempty,url,public_issuer"`

	// IntrospectionURL is the token introspection endpoint. Defaults to
	// "{issuer}/oauth/introspect" when empty.
	IntrospectionURL string `yaml:"introspection_url" mapstructure:"introspection_url" validate:"omitempty,url"`

	// ClientID and ClientSecret are the gateway's own credentials for
	// calling the introspection endpoint.
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`

	// NegativeCacheTTL is how long rejected tokens stay cached (e.g.
	// "30s"). Short so a freshly issued token is usable quickly.
	NegativeCacheTTL string `yaml:"negative_cache_ttl" mapstructure:"negative_cache_ttl" validate:"omitempty"`
}

// RateLimitConfig configures per-principal rate limiting.
type RateLimitConfig struct {
	// Enabled turns rate limiting on or off.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// RequestsPerSecond is the sustained rate per principal.
	// Defaults to 10 when rate limiting is enabled.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"omitempty,gt=0"`

	// Burst is the number of requests allowed at once.
	// Defaults to 20 when rate limiting is enabled.
	Burst int `yaml:"burst" mapstructure:"burst" validate:"omitempty,min=1"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Transport == "" {
		c.Transport = TransportStdio
	}

	// Bind to localhost only unless explicitly widened.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.SessionTimeout == "" {
		c.Server.SessionTimeout = "30m"
	}
	if c.Server.SweepInterval == "" {
		c.Server.SweepInterval = "1m"
	}

	if c.Backend.Timeout == "" {
		c.Backend.Timeout = "30s"
	}

	if c.OAuth.IntrospectionURL == "" && c.OAuth.Issuer != "" {
		c.OAuth.IntrospectionURL = trimSlash(c.OAuth.Issuer) + "/oauth/introspect"
	}
	if c.OAuth.NegativeCacheTTL == "" {
		c.OAuth.NegativeCacheTTL = "30s"
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond == 0 {
			c.RateLimit.RequestsPerSecond = 10
		}
		if c.RateLimit.Burst == 0 {
			c.RateLimit.Burst = 20
		}
	}
}

// SessionTimeoutDuration parses Server.SessionTimeout, falling back to 30
// minutes on a malformed value.
func (c *Config) SessionTimeoutDuration() time.Duration {
	return parseDuration(c.Server.SessionTimeout, 30*time.Minute)
}

// SweepIntervalDuration parses Server.SweepInterval, falling back to one
// minute.
func (c *Config) SweepIntervalDuration() time.Duration {
	return parseDuration(c.Server.SweepInterval, time.Minute)
}

// BackendTimeoutDuration parses Backend.Timeout, falling back to 30
// seconds.
func (c *Config) BackendTimeoutDuration() time.Duration {
	return parseDuration(c.Backend.Timeout, 30*time.Second)
}

// NegativeCacheTTLDuration parses OAuth.NegativeCacheTTL, falling back to
// 30 seconds.
func (c *Config) NegativeCacheTTLDuration() time.Duration {
	return parseDuration(c.OAuth.NegativeCacheTTL, 30*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
