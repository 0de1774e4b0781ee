package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"time"
)

var (
	// ErrSocketTimeout marks a connection read that timed out before a status was available.
	ErrSocketTimeout = errors.New("socket timeout")
	// ErrStatusNotOK is returned by Connection.InputStream when the server answered with an error status.
	ErrStatusNotOK = errors.New("server returned an error status")
	// ErrAlreadyConnected is returned when a connection is configured after its exchange ran.
	ErrAlreadyConnected = errors.New("connection already executed")
)

// Connection is a single-use handle on one request/response exchange.
//
// Configuration (SetMethod, SetHeader, WriteBody) must happen before the first
// call to InputStream, which executes the exchange. The response accessors are
// deliberately separate so the client can read no more than it needs.
type Connection interface {
	SetMethod(method string) error
	SetHeader(key, value string)
	Header(key string) string
	WriteBody(body []byte) error

	// InputStream returns the success body. It fails with an error wrapping
	// ErrStatusNotOK for error statuses and ErrSocketTimeout for read timeouts.
	InputStream() (io.ReadCloser, error)
	// ErrorStream returns the body of an error response, or nil when there is none.
	ErrorStream() io.ReadCloser
	StatusCode() (int, error)
	// Date returns the server date of the response, or the zero time when absent.
	Date() time.Time
	HeaderFields() nethttp.Header

	Close() error
}

// ConnectionFactory opens one connection per attempt.
type ConnectionFactory interface {
	Open(ctx context.Context, u *url.URL) (Connection, error)
}

// ConnectionFactoryFunc adapts a function to ConnectionFactory.
type ConnectionFactoryFunc func(ctx context.Context, u *url.URL) (Connection, error)

// Open calls f(ctx, u).
func (f ConnectionFactoryFunc) Open(ctx context.Context, u *url.URL) (Connection, error) {
	return f(ctx, u)
}

// IsSocketTimeout reports whether err is a read/connect timeout rather than a server answer.
func IsSocketTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSocketTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

const (
	// DefaultTimeout bounds a whole exchange on the default factory
	DefaultTimeout = 30 * time.Second

	// DefaultConnectTimeout bounds TCP/TLS connection establishment
	DefaultConnectTimeout = 30 * time.Second

	// DefaultReadTimeout bounds the wait for response headers
	DefaultReadTimeout = 30 * time.Second
)

type factoryOptions struct {
	httpClient     *nethttp.Client
	transport      nethttp.RoundTripper
	timeout        time.Duration
	connectTimeout time.Duration
	readTimeout    time.Duration
}

// FactoryOption customizes NewURLConnectionFactory.
type FactoryOption func(*factoryOptions)

// WithHTTPClient uses a caller-provided *http.Client for every exchange.
// A zero Timeout on the client is replaced by the factory timeout.
func WithHTTPClient(c *nethttp.Client) FactoryOption {
	return func(o *factoryOptions) {
		o.httpClient = c
	}
}

// WithTransport overrides the round tripper used by the default *http.Client.
func WithTransport(rt nethttp.RoundTripper) FactoryOption {
	return func(o *factoryOptions) {
		o.transport = rt
	}
}

// WithTimeout bounds a whole exchange, body read included.
func WithTimeout(d time.Duration) FactoryOption {
	return func(o *factoryOptions) {
		o.timeout = d
	}
}

// WithConnectTimeout bounds connection establishment.
func WithConnectTimeout(d time.Duration) FactoryOption {
	return func(o *factoryOptions) {
		o.connectTimeout = d
	}
}

// WithReadTimeout bounds the wait for response headers once the request is written.
func WithReadTimeout(d time.Duration) FactoryOption {
	return func(o *factoryOptions) {
		o.readTimeout = d
	}
}

// URLConnectionFactory opens net/http backed connections.
type URLConnectionFactory struct {
	client *nethttp.Client
}

// NewURLConnectionFactory creates the default connection factory.
func NewURLConnectionFactory(opts ...FactoryOption) *URLConnectionFactory {
	o := &factoryOptions{
		timeout:        DefaultTimeout,
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.httpClient != nil {
		if o.httpClient.Timeout == 0 {
			o.httpClient.Timeout = o.timeout
		}
		return &URLConnectionFactory{client: o.httpClient}
	}

	rt := o.transport
	if rt == nil {
		rt = newTransport(o.connectTimeout, o.readTimeout)
	}
	return &URLConnectionFactory{
		client: &nethttp.Client{
			Timeout:   o.timeout,
			Transport: rt,
		},
	}
}

func newTransport(connectTimeout, readTimeout time.Duration) *nethttp.Transport {
	base, ok := nethttp.DefaultTransport.(*nethttp.Transport)
	var t *nethttp.Transport
	if ok {
		t = base.Clone()
	} else {
		t = &nethttp.Transport{Proxy: nethttp.ProxyFromEnvironment}
	}
	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
	t.DialContext = dialer.DialContext
	t.TLSHandshakeTimeout = connectTimeout
	t.ResponseHeaderTimeout = readTimeout
	return t
}

// Open returns an unexecuted connection bound to u.
func (f *URLConnectionFactory) Open(ctx context.Context, u *url.URL) (Connection, error) {
	if u == nil {
		return nil, NewValidationError("URL cannot be nil", "url")
	}
	return &urlConnection{
		ctx:    ctx,
		client: f.client,
		url:    u,
		method: nethttp.MethodGet,
		header: make(nethttp.Header),
	}, nil
}

// urlConnection executes lazily on the first response accessor.
type urlConnection struct {
	ctx    context.Context
	client *nethttp.Client
	url    *url.URL

	method string
	header nethttp.Header
	body   []byte

	executed bool
	resp     *nethttp.Response
	err      error
	closed   bool
}

func (c *urlConnection) SetMethod(method string) error {
	if c.executed {
		return ErrAlreadyConnected
	}
	c.method = method
	return nil
}

func (c *urlConnection) SetHeader(key, value string) {
	c.header.Set(key, value)
}

func (c *urlConnection) Header(key string) string {
	return c.header.Get(key)
}

func (c *urlConnection) WriteBody(body []byte) error {
	if c.executed {
		return ErrAlreadyConnected
	}
	c.body = append(c.body, body...)
	return nil
}

func (c *urlConnection) connect() {
	if c.executed {
		return
	}
	c.executed = true

	var body io.Reader
	if len(c.body) > 0 {
		body = bytes.NewReader(c.body)
	}
	req, err := nethttp.NewRequestWithContext(c.ctx, c.method, c.url.String(), body)
	if err != nil {
		c.err = err
		return
	}
	req.Header = c.header.Clone()

	resp, err := c.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = logFilter.FilterURL(urlErr.URL)
		}
		if IsSocketTimeout(err) {
			c.err = fmt.Errorf("%w: %w", ErrSocketTimeout, err)
		} else {
			c.err = err
		}
		return
	}
	c.resp = resp
}

func (c *urlConnection) InputStream() (io.ReadCloser, error) {
	c.connect()
	if c.err != nil {
		return nil, c.err
	}
	if c.resp.StatusCode >= nethttp.StatusBadRequest {
		return nil, fmt.Errorf("%w: %d", ErrStatusNotOK, c.resp.StatusCode)
	}
	return c.resp.Body, nil
}

func (c *urlConnection) ErrorStream() io.ReadCloser {
	c.connect()
	if c.resp == nil || c.resp.StatusCode < nethttp.StatusBadRequest {
		return nil
	}
	return c.resp.Body
}

func (c *urlConnection) StatusCode() (int, error) {
	c.connect()
	if c.err != nil {
		return 0, c.err
	}
	return c.resp.StatusCode, nil
}

func (c *urlConnection) Date() time.Time {
	if c.resp == nil {
		return time.Time{}
	}
	raw := c.resp.Header.Get("Date")
	if raw == "" {
		return time.Time{}
	}
	t, err := nethttp.ParseTime(raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (c *urlConnection) HeaderFields() nethttp.Header {
	if c.resp == nil {
		return nethttp.Header{}
	}
	return c.resp.Header.Clone()
}

func (c *urlConnection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.resp != nil && c.resp.Body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(c.resp.Body, 4<<10))
		return c.resp.Body.Close()
	}
	return nil
}
