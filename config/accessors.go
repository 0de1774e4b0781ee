package config

import (
	"errors"
	"fmt"
	"time"
)

var errNotInitialized = errors.New("configuration not initialized")

// GetString retrieves a string value from the configuration or the provided default.
func (c *Config) GetString(key string, defaultVal ...string) string {
	if !c.Exists(key) {
		return optionalDefault("", defaultVal...)
	}
	return c.k.String(key)
}

// GetBool retrieves a bool value from the configuration or the provided default.
func (c *Config) GetBool(key string, defaultVal ...bool) bool {
	if !c.Exists(key) {
		return optionalDefault(false, defaultVal...)
	}
	return c.k.Bool(key)
}

// GetDuration retrieves a duration ("1s", "250ms") from the configuration or the provided default.
func (c *Config) GetDuration(key string, defaultVal ...time.Duration) time.Duration {
	if !c.Exists(key) {
		return optionalDefault(time.Duration(0), defaultVal...)
	}
	return c.k.Duration(key)
}

// GetRequiredString retrieves a string value that must be present and non-empty.
func (c *Config) GetRequiredString(key string) (string, error) {
	if c == nil || c.k == nil {
		return "", errNotInitialized
	}
	if v := c.GetString(key); v != "" {
		return v, nil
	}
	return "", NewMissingFieldError(key)
}

// Unmarshal unmarshals a configuration section into the provided struct.
func (c *Config) Unmarshal(key string, out any) error {
	if c == nil || c.k == nil {
		return errNotInitialized
	}
	if err := c.k.Unmarshal(key, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// Exists checks if a configuration key exists.
func (c *Config) Exists(key string) bool {
	if c == nil || c.k == nil {
		return false
	}
	return c.k.Exists(key)
}

// Custom returns the values under the `custom` namespace.
func (c *Config) Custom() map[string]any {
	if c == nil || c.k == nil {
		return nil
	}
	if m, ok := c.k.Get("custom").(map[string]any); ok {
		return m
	}
	return nil
}

func optionalDefault[T any](zero T, overrides ...T) T {
	if len(overrides) > 0 {
		return overrides[0]
	}
	return zero
}
