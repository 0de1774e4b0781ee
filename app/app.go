// Package app wires configuration, logging, telemetry and the identity HTTP
// clients into one process-wide instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/config"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/http"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/logger"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/observability"
)

// App owns the retrying client, the no-retry client and the telemetry provider.
// Both clients live until Shutdown.
type App struct {
	cfg     *config.Config
	logger  logger.Logger
	obs     observability.Provider
	client  http.Client
	noRetry http.Client
}

// Options contains optional dependencies for creating an App instance
type Options struct {
	ConfigLoader          func() (*config.Config, error)
	Logger                logger.Logger
	ConnectionFactory     http.ConnectionFactory
	ObservabilityProvider observability.Provider
	ObservabilityOptions  []observability.Option
	RequestInterceptors   []http.RequestInterceptor
	ResponseInterceptors  []http.ResponseInterceptor
}

// New creates an application from config.Load.
func New() (*App, error) {
	return NewWithOptions(nil)
}

// NewWithOptions creates an application, using opts to replace any default dependency.
func NewWithOptions(opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	loadConfig := opts.ConfigLoader
	if loadConfig == nil {
		loadConfig = config.Load
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	}

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Env).
		Str("version", cfg.App.Version).
		Msg("Starting application")

	obs := opts.ObservabilityProvider
	if obs == nil {
		obs, err = newObservability(cfg, log, opts.ObservabilityOptions)
		if err != nil {
			return nil, err
		}
	}

	builder := newClientBuilder(cfg, log, obs, opts)
	a := &App{
		cfg:     cfg,
		logger:  log,
		obs:     obs,
		client:  builder.WithRetry(cfg.HTTP.Retry.Enabled).Build(),
		noRetry: builder.WithoutRetry().Build(),
	}

	log.Info().
		Bool("retry_enabled", cfg.HTTP.Retry.Enabled).
		Dur("retry_delay", cfg.HTTP.Retry.Delay).
		Bool("rate_limited", cfg.HTTP.RateLimit.Enabled()).
		Bool("basic_auth", cfg.HTTP.Auth.Enabled()).
		Msg("HTTP clients initialized")

	return a, nil
}

// newObservability reads the `observability` section. Service version and
// environment fall back to the app section.
func newObservability(cfg *config.Config, log logger.Logger, opts []observability.Option) (observability.Provider, error) {
	var obsCfg observability.Config
	if err := cfg.Unmarshal("observability", &obsCfg); err != nil {
		return nil, fmt.Errorf("failed to read observability config: %w", err)
	}
	if obsCfg.Service.Version == "" {
		obsCfg.Service.Version = cfg.App.Version
	}
	if obsCfg.Environment == "" {
		obsCfg.Environment = cfg.App.Env
	}

	p, err := observability.NewProvider(&obsCfg, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return p, nil
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}

// Client returns the retrying client.
func (a *App) Client() http.Client {
	return a.client
}

// NoRetryClient returns the client that never retries.
func (a *App) NoRetryClient() http.Client {
	return a.noRetry
}

// Observability returns the telemetry provider.
func (a *App) Observability() observability.Provider {
	return a.obs
}

// Shutdown flushes telemetry. The clients hold no resources of their own.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	start := time.Now()

	a.logger.Info().Msg("Shutting down observability provider")
	if err := a.obs.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("observability: %w", err))
		a.logger.Error().Err(err).Msg("Failed to shutdown observability provider")
	}

	a.logger.Info().Dur("duration", time.Since(start)).Msg("Application shutdown complete")
	return errors.Join(errs...)
}
