package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateRateLimit, RateLimitConfig{})
	return v
}

// Validate checks cfg against its struct tags. Every rejected key is reported
// as a *ConfigError; several are joined with errors.Join.
func Validate(cfg *Config) error {
	if cfg == nil {
		return NewMissingFieldError("config")
	}

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, toConfigError(fe))
	}
	return errors.Join(errs...)
}

// validateRateLimit requires a positive burst whenever a rate is set.
func validateRateLimit(sl validator.StructLevel) {
	rl, ok := sl.Current().Interface().(RateLimitConfig)
	if !ok {
		return
	}
	if rl.Enabled() && rl.Burst < 1 {
		sl.ReportError(rl.Burst, "burst", "Burst", "burst_required", "")
	}
}

// fieldPath turns "Config.http.retry.delay" into "http.retry.delay".
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

func toConfigError(fe validator.FieldError) *ConfigError {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "gt":
		return NewInvalidFieldError(field, "must be greater than "+fe.Param(), nil)
	case "required_with":
		return NewInvalidFieldError(field, "must be set together with "+strings.ToLower(fe.Param()), nil)
	case "gte":
		return NewInvalidFieldError(field, "must not be negative", nil)
	case "burst_required":
		return NewInvalidFieldError(field, "must be at least 1 when http.ratelimit.rps is set", nil)
	default:
		return NewInvalidFieldError(field, "failed "+fe.Tag()+" validation", nil)
	}
}
