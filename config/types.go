package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config represents the overall configuration of an identity HTTP client process.
// The embedded koanf.Koanf instance allows flexible access to sections that are
// not described by the struct, such as `observability` and `custom`.
type Config struct {
	App  AppConfig  `koanf:"app" json:"app" yaml:"app" toml:"app" mapstructure:"app"`
	Log  LogConfig  `koanf:"log" json:"log" yaml:"log" toml:"log" mapstructure:"log"`
	HTTP HTTPConfig `koanf:"http" json:"http" yaml:"http" toml:"http" mapstructure:"http"`

	// k holds the underlying Koanf instance for flexible access to custom configurations
	k *koanf.Koanf `json:"-" yaml:"-" toml:"-" mapstructure:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" toml:"name" mapstructure:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" toml:"version" mapstructure:"version" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" toml:"env" mapstructure:"env" validate:"oneof=development staging production"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" toml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" toml:"pretty" mapstructure:"pretty"`
}

// HTTPConfig holds settings for the identity HTTP clients.
type HTTPConfig struct {
	Retry     RetryConfig       `koanf:"retry" json:"retry" yaml:"retry" toml:"retry" mapstructure:"retry"`
	Timeout   TimeoutConfig     `koanf:"timeout" json:"timeout" yaml:"timeout" toml:"timeout" mapstructure:"timeout"`
	RateLimit RateLimitConfig   `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit" toml:"ratelimit" mapstructure:"ratelimit"`
	Headers   map[string]string `koanf:"headers" json:"headers" yaml:"headers" toml:"headers" mapstructure:"headers"`
	Trace     TraceConfig       `koanf:"trace" json:"trace" yaml:"trace" toml:"trace" mapstructure:"trace"`
	Payload   PayloadConfig     `koanf:"payload" json:"payload" yaml:"payload" toml:"payload" mapstructure:"payload"`
	Auth      AuthConfig        `koanf:"auth" json:"auth" yaml:"auth" toml:"auth" mapstructure:"auth"`
}

// RetryConfig controls the single retry of transient failures.
type RetryConfig struct {
	Enabled bool          `koanf:"enabled" json:"enabled" yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	Delay   time.Duration `koanf:"delay" json:"delay" yaml:"delay" toml:"delay" mapstructure:"delay" validate:"gte=0"`
}

// TimeoutConfig holds connection timeouts.
type TimeoutConfig struct {
	Connect time.Duration `koanf:"connect" json:"connect" yaml:"connect" toml:"connect" mapstructure:"connect" validate:"gt=0"`
	Read    time.Duration `koanf:"read" json:"read" yaml:"read" toml:"read" mapstructure:"read" validate:"gt=0"`
}

// RateLimitConfig holds client-side rate limiting settings.
// RPS of zero disables the limiter.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps" json:"rps" yaml:"rps" toml:"rps" mapstructure:"rps" validate:"gte=0"`
	Burst int     `koanf:"burst" json:"burst" yaml:"burst" toml:"burst" mapstructure:"burst" validate:"gte=0"`
}

// TraceConfig controls correlation header propagation.
// An empty Header disables the request ID header.
type TraceConfig struct {
	Header string `koanf:"header" json:"header" yaml:"header" toml:"header" mapstructure:"header"`
	W3C    bool   `koanf:"w3c" json:"w3c" yaml:"w3c" toml:"w3c" mapstructure:"w3c"`
}

// PayloadConfig controls debug logging of request bodies.
type PayloadConfig struct {
	Log      bool `koanf:"log" json:"log" yaml:"log" toml:"log" mapstructure:"log"`
	MaxBytes int  `koanf:"maxbytes" json:"maxbytes" yaml:"maxbytes" toml:"maxbytes" mapstructure:"maxbytes" validate:"gte=0"`
}

// AuthConfig holds client_secret_basic credentials for confidential clients.
// An empty Username disables basic auth.
type AuthConfig struct {
	Username string `koanf:"username" json:"username" yaml:"username" toml:"username" mapstructure:"username" validate:"required_with=Password"`
	Password string `koanf:"password" json:"-" yaml:"password" toml:"password" mapstructure:"password"`
}

// Enabled reports whether basic auth credentials are configured.
func (c AuthConfig) Enabled() bool {
	return c.Username != ""
}

// Enabled reports whether a client-side rate limit is configured.
func (c RateLimitConfig) Enabled() bool {
	return c.RPS > 0
}
