package config

import (
	"fmt"
	"strings"
)

// Error categories.
const (
	CategoryMissing = "missing"
	CategoryInvalid = "invalid"
)

// ConfigError describes one rejected configuration key with actionable guidance.
// Messages are lowercase.
//
//nolint:revive // ConfigError reads better than Error at call sites in other packages
type ConfigError struct {
	Category string   // CategoryMissing or CategoryInvalid
	Field    string   // dotted key, e.g. "http.retry.delay"
	Message  string   // what is wrong
	Action   string   // how to fix it
	Details  []string // extra hints
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, 5)
	if e.Category != "" {
		parts = append(parts, "config_"+e.Category+":")
	}
	for _, p := range []string{e.Field, e.Message, e.Action} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(e.Details) > 0 {
		parts = append(parts, strings.Join(e.Details, "; "))
	}
	return strings.Join(parts, " ")
}

// NewMissingFieldError reports a required key that has no value.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: CategoryMissing,
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to %s", envVarFor(field), field, configFile),
	}
}

// NewInvalidFieldError reports a key whose value is out of range.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{
		Category: CategoryInvalid,
		Field:    field,
		Message:  message,
	}
	if len(validOptions) > 0 {
		err.Action = "must be one of: " + strings.Join(validOptions, ", ")
	}
	return err
}
