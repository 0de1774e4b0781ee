package http

import (
	"context"
	nethttp "net/http"
	"net/url"
	"time"
)

// Client defines the transport surface used by the identity SDK.
// Every call is one logical request that may span up to two attempts,
// depending on whether the client was built with retries enabled.
type Client interface {
	Get(ctx context.Context, u *url.URL, headers map[string]string) (*Response, error)
	Head(ctx context.Context, u *url.URL, headers map[string]string) (*Response, error)
	Trace(ctx context.Context, u *url.URL, headers map[string]string) (*Response, error)
	Post(ctx context.Context, u *url.URL, headers map[string]string, body []byte, contentType string) (*Response, error)
	Put(ctx context.Context, u *url.URL, headers map[string]string, body []byte, contentType string) (*Response, error)
	Patch(ctx context.Context, u *url.URL, headers map[string]string, body []byte, contentType string) (*Response, error)
	Delete(ctx context.Context, u *url.URL, headers map[string]string, body []byte, contentType string) (*Response, error)
	Options(ctx context.Context, u *url.URL, headers map[string]string, body []byte, contentType string) (*Response, error)
	SendWithMethod(ctx context.Context, method string, u *url.URL, headers map[string]string, body []byte, contentType string) (*Response, error)
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request describes a single logical request.
type Request struct {
	Method      Method
	URL         *url.URL
	Headers     map[string]string
	Body        []byte
	ContentType string
	// Auth overrides the client's basic auth credentials for this request
	Auth *BasicAuth
}

// Response is the normalized outcome of one completed attempt.
// Body is never nil-like: an absent body is the empty string.
// Date is only populated from failure responses; the zero value means absent.
type Response struct {
	StatusCode int
	Body       string
	Headers    nethttp.Header
	Date       time.Time
	Stats      Stats
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
	Attempts    int
}

// BasicAuth contains client credentials sent as an HTTP Basic Authorization
// header, as used by confidential clients with client_secret_basic.
type BasicAuth struct {
	Username string
	Password string
}

// RequestInterceptor is called once per logical request, before the first attempt.
// It may add headers, which are then sent on every attempt; returning an error
// aborts the request before any connection is opened.
type RequestInterceptor func(ctx context.Context, req *Request, headers map[string]string) error

// ResponseInterceptor is called once per logical request with the final response,
// after any retry. Returning an error discards the response.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// Config holds the client configuration
type Config struct {
	RetryEnabled         bool
	RetryDelay           time.Duration
	DefaultHeaders       map[string]string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	BasicAuth            *BasicAuth
	// LogPayloads enables debug-level logging of request and response bodies
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
	// TraceIDHeader configures the header name used for trace ID propagation (default: client-request-id)
	TraceIDHeader string
	// NewTraceID generates a new trace ID when none is present in the context (default: uuid)
	NewTraceID func() string
	// EnableW3CTrace enables traceparent/tracestate propagation and generation
	EnableW3CTrace bool
}
