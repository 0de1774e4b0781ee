package observability

import (
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that outputs to stdout (for local development).
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// CompressionGzip specifies gzip compression for OTLP export.
	CompressionGzip = "gzip"

	// CompressionNone specifies no compression for OTLP export.
	CompressionNone = "none"

	// EnvironmentDevelopment is the default environment name.
	EnvironmentDevelopment = "development"
)

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Config defines the telemetry export settings of the process.
// It is read from the `observability` configuration section.
type Config struct {
	// Enabled controls whether telemetry is exported.
	// When false, NewProvider returns a no-op provider.
	Enabled bool `koanf:"enabled"`

	Service     ServiceConfig `koanf:"service"`
	Environment string        `koanf:"environment"`
	Trace       TraceConfig   `koanf:"trace"`
	Metrics     MetricsConfig `koanf:"metrics"`
}

// ServiceConfig identifies the process in traces and metrics.
type ServiceConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// TraceConfig defines span export.
type TraceConfig struct {
	// Enabled: nil applies the default (true when observability is enabled).
	Enabled *bool `koanf:"enabled"`

	// Endpoint is "stdout" or an OTLP endpoint: "http://host:4318" for HTTP,
	// "host:4317" for gRPC.
	Endpoint string `koanf:"endpoint"`

	Protocol    string            `koanf:"protocol"`
	Insecure    bool              `koanf:"insecure"`
	Headers     map[string]string `koanf:"headers"`
	Compression string            `koanf:"compression"`
	Sample      SampleConfig      `koanf:"sample"`
	Batch       BatchConfig       `koanf:"batch"`
	Export      ExportConfig      `koanf:"export"`
}

// SampleConfig defines trace sampling.
type SampleConfig struct {
	// Rate is the fraction of traces kept, 0.0 to 1.0. nil applies 1.0.
	Rate *float64 `koanf:"rate"`
}

// BatchConfig defines span batching.
type BatchConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	Size    int           `koanf:"size"`
}

// ExportConfig bounds a single export call.
type ExportConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// MetricsConfig defines metric export. Unset transport fields inherit from TraceConfig.
type MetricsConfig struct {
	// Enabled: nil applies the default (true when observability is enabled).
	Enabled *bool `koanf:"enabled"`

	Endpoint    string            `koanf:"endpoint"`
	Protocol    string            `koanf:"protocol"`
	Insecure    *bool             `koanf:"insecure"`
	Headers     map[string]string `koanf:"headers"`
	Compression string            `koanf:"compression"`
	Interval    time.Duration     `koanf:"interval"`
	Export      ExportConfig      `koanf:"export"`
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}
	c.applyTraceDefaults()
	c.applyMetricsDefaults()
}

// exportTimeout is short locally and generous for remote collectors.
func (c *Config) exportTimeout(endpoint string) time.Duration {
	if c.Environment == EnvironmentDevelopment || endpoint == EndpointStdout {
		return 10 * time.Second
	}
	return 60 * time.Second
}

func (c *Config) applyTraceDefaults() {
	t := &c.Trace
	if t.Endpoint == "" {
		t.Endpoint = EndpointStdout
	}
	if c.Enabled && t.Enabled == nil {
		t.Enabled = BoolPtr(true)
	}
	if t.Protocol == "" {
		t.Protocol = ProtocolHTTP
	}
	if t.Endpoint == EndpointStdout {
		t.Insecure = true
	}
	if t.Compression == "" {
		t.Compression = CompressionGzip
	}
	if t.Sample.Rate == nil {
		t.Sample.Rate = Float64Ptr(1.0)
	}
	if t.Batch.Timeout == 0 {
		t.Batch.Timeout = 5 * time.Second
		if c.Environment == EnvironmentDevelopment || t.Endpoint == EndpointStdout {
			t.Batch.Timeout = 500 * time.Millisecond
		}
	}
	if t.Batch.Size == 0 {
		t.Batch.Size = 512
	}
	if t.Export.Timeout == 0 {
		t.Export.Timeout = c.exportTimeout(t.Endpoint)
	}
}

func (c *Config) applyMetricsDefaults() {
	m := &c.Metrics
	if m.Endpoint == "" {
		m.Endpoint = EndpointStdout
	}
	if c.Enabled && m.Enabled == nil {
		m.Enabled = BoolPtr(true)
	}
	if m.Protocol == "" {
		m.Protocol = c.Trace.Protocol
	}
	if m.Insecure == nil {
		m.Insecure = BoolPtr(c.Trace.Insecure || m.Endpoint == EndpointStdout)
	}
	if m.Headers == nil && c.Trace.Headers != nil {
		m.Headers = maps.Clone(c.Trace.Headers)
	}
	if m.Compression == "" {
		m.Compression = CompressionGzip
	}
	if m.Interval == 0 {
		m.Interval = 10 * time.Second
	}
	if m.Export.Timeout == 0 {
		m.Export.Timeout = c.exportTimeout(m.Endpoint)
	}
}

// TraceEnabled reports whether spans are exported.
func (c *Config) TraceEnabled() bool {
	return c.Enabled && c.Trace.Enabled != nil && *c.Trace.Enabled
}

// MetricsEnabled reports whether metrics are exported.
func (c *Config) MetricsEnabled() bool {
	return c.Enabled && c.Metrics.Enabled != nil && *c.Metrics.Enabled
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}

	if rate := c.Trace.Sample.Rate; rate != nil && (*rate < 0.0 || *rate > 1.0) {
		return ErrInvalidSampleRate
	}
	if err := validateTransport(c.Trace.Endpoint, c.Trace.Protocol, c.Trace.Compression); err != nil {
		return err
	}

	protocol := c.Metrics.Protocol
	if protocol == "" {
		protocol = c.Trace.Protocol
	}
	return validateTransport(c.Metrics.Endpoint, protocol, c.Metrics.Compression)
}

func validateTransport(endpoint, protocol, compression string) error {
	if compression != "" && compression != CompressionGzip && compression != CompressionNone {
		return ErrInvalidCompression
	}
	if endpoint == EndpointStdout || endpoint == "" {
		return nil
	}
	if protocol == "" {
		protocol = ProtocolHTTP
	}
	if protocol != ProtocolHTTP && protocol != ProtocolGRPC {
		return ErrInvalidProtocol
	}

	// gRPC takes "host:port"; HTTP needs a scheme.
	hasScheme := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
	if (protocol == ProtocolGRPC) == hasScheme {
		return ErrInvalidEndpointFormat
	}
	return nil
}
