package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/logger"
)

// Provider is the interface for observability providers.
// It manages the lifecycle of tracing and metrics providers.
type Provider interface {
	// TracerProvider returns the configured trace provider.
	TracerProvider() trace.TracerProvider

	// MeterProvider returns the configured meter provider.
	MeterProvider() metric.MeterProvider

	// Shutdown flushes pending telemetry and releases the exporters.
	Shutdown(ctx context.Context) error

	// ForceFlush immediately exports any pending telemetry.
	ForceFlush(ctx context.Context) error
}

// Option customizes NewProvider.
type Option func(*options)

type options struct {
	stdout    io.Writer
	setGlobal bool
}

// WithStdoutWriter redirects the "stdout" exporters, mostly for tests.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// WithoutGlobal keeps the providers out of the otel globals.
func WithoutGlobal() Option {
	return func(o *options) { o.setGlobal = false }
}

type provider struct {
	config         Config
	opts           options
	log            logger.Logger
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// NewProvider creates a provider from cfg. Defaults are applied to a copy of cfg
// before validation. A disabled configuration yields a no-op provider.
func NewProvider(cfg *Config, log logger.Logger, opts ...Option) (Provider, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	o := options{stdout: os.Stdout, setGlobal: true}
	for _, opt := range opts {
		opt(&o)
	}

	safeCfg := *cfg
	safeCfg.ApplyDefaults()
	if err := safeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	if !safeCfg.Enabled {
		log.Debug().Msg("Observability disabled, using no-op provider")
		return newNoopProvider(), nil
	}

	if safeCfg.TraceEnabled() && *safeCfg.Trace.Sample.Rate == 0.0 {
		log.Warn().Msg("Trace sample rate is 0.0, no spans will be recorded")
	}

	p := &provider{config: safeCfg, opts: o, log: log}

	res, err := p.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if safeCfg.TraceEnabled() {
		if err := p.initTraceProvider(res); err != nil {
			return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
		}
	}
	if safeCfg.MetricsEnabled() {
		if err := p.initMeterProvider(res); err != nil {
			_ = p.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
		}
	}

	if o.setGlobal {
		p.installGlobals()
	}

	log.Info().
		Str("service", safeCfg.Service.Name).
		Str("trace_endpoint", safeCfg.Trace.Endpoint).
		Str("metrics_endpoint", safeCfg.Metrics.Endpoint).
		Msg("Observability provider initialized")
	return p, nil
}

func (p *provider) installGlobals() {
	if p.tracerProvider != nil {
		otel.SetTracerProvider(p.tracerProvider)
	}
	if p.meterProvider != nil {
		otel.SetMeterProvider(p.meterProvider)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func (p *provider) createResource() (*resource.Resource, error) {
	custom, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(p.config.Service.Name),
			semconv.ServiceVersion(p.config.Service.Version),
			semconv.DeploymentEnvironmentName(p.config.Environment),
		),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), custom)
}

func (p *provider) initTraceProvider(res *resource.Resource) error {
	exporter, err := p.createTraceExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(
		exporter,
		sdktrace.WithBatchTimeout(p.config.Trace.Batch.Timeout),
		sdktrace.WithExportTimeout(p.config.Trace.Export.Timeout),
		sdktrace.WithMaxExportBatchSize(p.config.Trace.Batch.Size),
	)

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*p.config.Trace.Sample.Rate))),
	)
	return nil
}

func (p *provider) createTraceExporter() (sdktrace.SpanExporter, error) {
	cfg := p.config.Trace
	p.log.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("protocol", cfg.Protocol).
		Msg("Creating trace exporter")

	if cfg.Endpoint == EndpointStdout {
		return stdouttrace.New(stdouttrace.WithWriter(p.opts.stdout))
	}

	switch cfg.Protocol {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		if cfg.Compression == CompressionGzip {
			opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
		} else {
			opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.NoCompression))
		}
		return otlptracehttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		if cfg.Compression == CompressionGzip {
			opts = append(opts, otlptracegrpc.WithCompressor(CompressionGzip))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("trace protocol '%s': %w", cfg.Protocol, ErrInvalidProtocol)
	}
}

// TracerProvider returns the configured trace provider.
func (p *provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider == nil {
		return noop.NewTracerProvider()
	}
	return p.tracerProvider
}

// MeterProvider returns the configured meter provider.
func (p *provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.meterProvider
}

// Shutdown shuts both providers down concurrently.
func (p *provider) Shutdown(ctx context.Context) error {
	return p.each(ctx, "shutdown",
		func(ctx context.Context) error { return p.tracerProvider.Shutdown(ctx) },
		func(ctx context.Context) error { return p.meterProvider.Shutdown(ctx) },
	)
}

// ForceFlush flushes both providers concurrently.
func (p *provider) ForceFlush(ctx context.Context) error {
	return p.each(ctx, "flush",
		func(ctx context.Context) error { return p.tracerProvider.ForceFlush(ctx) },
		func(ctx context.Context) error { return p.meterProvider.ForceFlush(ctx) },
	)
}

func (p *provider) each(ctx context.Context, op string, traceFn, meterFn func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if p.tracerProvider != nil {
		g.Go(func() error {
			if err := traceFn(gctx); err != nil {
				return fmt.Errorf("failed to %s trace provider: %w", op, err)
			}
			return nil
		})
	}
	if p.meterProvider != nil {
		g.Go(func() error {
			if err := meterFn(gctx); err != nil {
				return fmt.Errorf("failed to %s meter provider: %w", op, err)
			}
			return nil
		})
	}
	return g.Wait()
}
