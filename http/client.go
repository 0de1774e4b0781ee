package http

import (
	"context"
	"encoding/base64"
	"maps"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/internal/tracking"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/logger"
	gotrace "github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/trace"
)

const (
	// DefaultRetryDelay is the fixed wait before the single retry
	DefaultRetryDelay = 1 * time.Second

	headerAuthorization = "Authorization"
)

// client implements the Client interface
type client struct {
	factory   ConnectionFactory
	logger    logger.Logger
	config    *Config
	limiter   *rate.Limiter
	recorder  *tracking.Recorder
	callCount int64
}

// NewClient creates a retrying client with default configuration
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

// NewNoRetryClient creates a client that returns the first outcome as-is
func NewNoRetryClient(log logger.Logger) Client {
	return NewBuilder(log).WithoutRetry().Build()
}

// Builder provides a fluent interface for configuring the client
type Builder struct {
	config         *Config
	logger         logger.Logger
	factory        ConnectionFactory
	factoryOptions []FactoryOption
	limiter        *rate.Limiter
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: &Config{
			RetryEnabled:         true,
			RetryDelay:           DefaultRetryDelay,
			DefaultHeaders:       make(map[string]string),
			RequestInterceptors:  []RequestInterceptor{},
			ResponseInterceptors: []ResponseInterceptor{},
			MaxPayloadLogBytes:   defaultMaxPayloadLogBytes,
			TraceIDHeader:        gotrace.HeaderClientRequestID,
			NewTraceID:           gotrace.NewID,
		},
		logger: log,
	}
}

// WithRetry enables or disables the single retry
func (b *Builder) WithRetry(enabled bool) *Builder {
	b.config.RetryEnabled = enabled
	return b
}

// WithoutRetry builds a client that never retries
func (b *Builder) WithoutRetry() *Builder {
	return b.WithRetry(false)
}

// WithRetryDelay sets the fixed wait before the retry. Negative values are treated as zero.
func (b *Builder) WithRetryDelay(delay time.Duration) *Builder {
	b.config.RetryDelay = max(delay, 0)
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithBasicAuth sets basic authentication credentials sent on every attempt
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{
		Username: username,
		Password: password,
	}
	return b
}

// WithConnectionFactory replaces the default net/http connection factory.
// Timeout options are ignored when a factory is supplied.
func (b *Builder) WithConnectionFactory(factory ConnectionFactory) *Builder {
	b.factory = factory
	return b
}

// WithTimeout bounds a whole exchange on the default factory
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.factoryOptions = append(b.factoryOptions, WithTimeout(timeout))
	return b
}

// WithConnectTimeout bounds connection establishment on the default factory
func (b *Builder) WithConnectTimeout(timeout time.Duration) *Builder {
	b.factoryOptions = append(b.factoryOptions, WithConnectTimeout(timeout))
	return b
}

// WithReadTimeout bounds the wait for response headers on the default factory
func (b *Builder) WithReadTimeout(timeout time.Duration) *Builder {
	b.factoryOptions = append(b.factoryOptions, WithReadTimeout(timeout))
	return b
}

// WithFactoryOptions passes raw options to the default factory
func (b *Builder) WithFactoryOptions(opts ...FactoryOption) *Builder {
	b.factoryOptions = append(b.factoryOptions, opts...)
	return b
}

// WithRateLimiter makes every attempt wait for a token from limiter
func (b *Builder) WithRateLimiter(limiter *rate.Limiter) *Builder {
	b.limiter = limiter
	return b
}

// WithTelemetry sets the providers used for attempt spans and metrics.
// Nil providers fall back to the OpenTelemetry globals.
func (b *Builder) WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) *Builder {
	b.tracerProvider = tp
	b.meterProvider = mp
	return b
}

// WithTraceIDHeader sets the correlation header name; empty disables it
func (b *Builder) WithTraceIDHeader(header string) *Builder {
	b.config.TraceIDHeader = header
	return b
}

// WithTraceIDGenerator sets the generator used when the context has no trace ID
func (b *Builder) WithTraceIDGenerator(gen func() string) *Builder {
	if gen != nil {
		b.config.NewTraceID = gen
	}
	return b
}

// WithW3CTrace enables traceparent/tracestate propagation
func (b *Builder) WithW3CTrace(enabled bool) *Builder {
	b.config.EnableW3CTrace = enabled
	return b
}

// WithPayloadLogging enables debug logging of bodies, capped at maxBytes (0 keeps the default).
// Sensitive fields of form-encoded and JSON bodies are masked; other bodies are logged as-is.
func (b *Builder) WithPayloadLogging(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// Build creates the client with the configured options.
// The builder may be reused; later changes do not affect built clients.
func (b *Builder) Build() Client {
	cfg := *b.config
	cfg.DefaultHeaders = maps.Clone(b.config.DefaultHeaders)
	cfg.RequestInterceptors = append([]RequestInterceptor(nil), b.config.RequestInterceptors...)
	cfg.ResponseInterceptors = append([]ResponseInterceptor(nil), b.config.ResponseInterceptors...)
	if b.config.BasicAuth != nil {
		auth := *b.config.BasicAuth
		cfg.BasicAuth = &auth
	}

	factory := b.factory
	if factory == nil {
		factory = NewURLConnectionFactory(b.factoryOptions...)
	}

	return &client{
		factory:  factory,
		logger:   b.logger,
		config:   &cfg,
		limiter:  b.limiter,
		recorder: tracking.NewRecorder(b.tracerProvider, b.meterProvider),
	}
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, u *url.URL, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{Method: MethodGet, URL: u, Headers: headers})
}

// Head performs a HEAD request
func (c *client) Head(ctx context.Context, u *url.URL, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{Method: MethodHead, URL: u, Headers: headers})
}

// Trace performs a TRACE request
func (c *client) Trace(ctx context.Context, u *url.URL, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{Method: MethodTrace, URL: u, Headers: headers})
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, u *url.URL, headers map[string]string, body []byte, contentType string) (*Response, error) {
	return c.Do(ctx, &Request{Method: MethodPost, URL: u, Headers: headers, Body: body, ContentType: contentType})
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, u *url.URL, headers map[string]string, body []byte, contentType string) (*Response, error) {
	return c.Do(ctx, &Request{Method: MethodPut, URL: u, Headers: headers, Body: body, ContentType: contentType})
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, u *url.URL, headers map[string]string, body []byte, contentType string) (*Response, error) {
	return c.Do(ctx, &Request{Method: MethodPatch, URL: u, Headers: headers, Body: body, ContentType: contentType})
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, u *url.URL, headers map[string]string, body []byte, contentType string) (*Response, error) {
	return c.Do(ctx, &Request{Method: MethodDelete, URL: u, Headers: headers, Body: body, ContentType: contentType})
}

// Options performs an OPTIONS request
func (c *client) Options(ctx context.Context, u *url.URL, headers map[string]string, body []byte, contentType string) (*Response, error) {
	return c.Do(ctx, &Request{Method: MethodOptions, URL: u, Headers: headers, Body: body, ContentType: contentType})
}

// SendWithMethod dispatches on a verb name. Unknown names fail before any connection is opened.
func (c *client) SendWithMethod(ctx context.Context, method string, u *url.URL, headers map[string]string, body []byte, contentType string) (*Response, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, &Request{Method: m, URL: u, Headers: headers, Body: body, ContentType: contentType})
}

// validateRequest validates the request before sending
func (c *client) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request")
	}
	if req.URL == nil {
		return NewValidationError("URL cannot be nil", "url")
	}
	if !req.Method.Valid() {
		return NewValidationError("unsupported HTTP method", "method")
	}
	return nil
}

// buildHeaders merges default headers, request headers, basic auth, correlation
// headers and interceptor additions, in that order. req.Headers is never mutated.
func (c *client) buildHeaders(ctx context.Context, req *Request) (map[string]string, error) {
	headers := make(map[string]string, len(c.config.DefaultHeaders)+len(req.Headers)+3)
	maps.Copy(headers, c.config.DefaultHeaders)
	maps.Copy(headers, req.Headers)
	c.applyAuth(headers, req)

	gotrace.Inject(ctx, headers, gotrace.InjectOptions{
		IDHeader: c.config.TraceIDHeader,
		W3C:      c.config.EnableW3CTrace,
	})

	for _, interceptor := range c.config.RequestInterceptors {
		if err := interceptor(ctx, req, headers); err != nil {
			return nil, NewInterceptorError("request interceptor failed", "request", err)
		}
	}
	return headers, nil
}

// applyAuth sets the Authorization header from basic auth credentials.
// Request credentials take precedence over the client's.
func (c *client) applyAuth(headers map[string]string, req *Request) {
	auth := req.Auth
	if auth == nil {
		auth = c.config.BasicAuth
	}
	if auth == nil {
		return
	}

	for k := range headers {
		if strings.EqualFold(k, headerAuthorization) {
			delete(headers, k)
		}
	}
	headers[headerAuthorization] = "Basic " + base64.StdEncoding.EncodeToString([]byte(auth.Username+":"+auth.Password))
}

// runResponseInterceptors executes all response interceptors in order
func (c *client) runResponseInterceptors(ctx context.Context, req *Request, resp *Response) error {
	for _, interceptor := range c.config.ResponseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return NewInterceptorError("response interceptor failed", "response", err)
		}
	}
	return nil
}

// withCorrelation makes sure the identifiers injected into headers are stable
// across both attempts of a logical request.
func (c *client) withCorrelation(ctx context.Context) (context.Context, string) {
	ctx, traceID := gotrace.EnsureTraceID(ctx, c.config.NewTraceID)
	if c.config.EnableW3CTrace {
		ctx, _ = gotrace.EnsureTraceParent(ctx)
	}
	return ctx, traceID
}
