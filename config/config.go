package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	configFile        = "config.yaml"
	envConfigTemplate = "config.%s.yaml"
)

// envSections lists the top-level keys environment variables may set.
// Anything else in the process environment is ignored.
var envSections = []string{"app", "log", "http", "observability", "custom"}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. YAML configuration files
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	return load(nil, os.Environ)
}

// LoadFromBytes loads defaults, then the YAML document in data, then the environment.
// It is meant for tests and for embedding a configuration into a binary.
func LoadFromBytes(data []byte) (*Config, error) {
	return load(data, os.Environ)
}

func load(data []byte, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	switch {
	case data == nil:
		if err := loadFiles(k); err != nil {
			return nil, err
		}
	case len(data) > 0:
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: transformEnv,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadFiles merges config.yaml and config.<env>.yaml when present.
func loadFiles(k *koanf.Koanf) error {
	if err := loadOptionalFile(k, configFile); err != nil {
		return err
	}

	if appEnv := k.String("app.env"); appEnv != "" {
		if err := loadOptionalFile(k, fmt.Sprintf(envConfigTemplate, appEnv)); err != nil {
			return err
		}
	}
	return nil
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// transformEnv converts UPPER_CASE to lower.case for koanf.
// Returning an empty key makes the provider skip the variable.
func transformEnv(key, value string) (string, any) {
	key = strings.ReplaceAll(strings.ToLower(key), "_", ".")
	section, _, _ := strings.Cut(key, ".")
	if !slices.Contains(envSections, section) || section == key {
		return "", nil
	}
	return key, value
}

// envVarFor returns the environment variable that sets a config key.
func envVarFor(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "identity-http",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"http.retry.enabled":    true,
		"http.retry.delay":      "1s",
		"http.timeout.connect":  "30s",
		"http.timeout.read":     "30s",
		"http.ratelimit.rps":    0,
		"http.ratelimit.burst":  1,
		"http.trace.header":     "client-request-id",
		"http.trace.w3c":        false,
		"http.payload.log":      false,
		"http.payload.maxbytes": 1024,

		"observability.enabled":      false,
		"observability.service.name": "identity-http",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
