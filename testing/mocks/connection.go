package mocks

import (
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"sync"
	"time"

	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/http"
)

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	outcomeTimeout
	outcomeBroken
)

// MockConnection is a scripted http.Connection. It records the request it
// receives and every accessor call into the Journal of the queue that opened it.
//
// Example usage:
//
//	q := mocks.NewConnectionQueue(
//		mocks.NewFailureConnection("first", 503, "busy"),
//		mocks.NewSuccessConnection("second", `{"ok":true}`),
//	)
//	client := http.NewBuilder(log).WithConnectionFactory(q).WithRetryDelay(0).Build()
type MockConnection struct {
	name    string
	outcome outcome
	status  int
	body    string
	noBody  bool
	headers nethttp.Header
	date    time.Time
	err     error

	mu          sync.Mutex
	journal     *Journal
	method      string
	reqHeaders  nethttp.Header
	written     []byte
	bodyWritten bool
	closed      bool
}

var _ http.Connection = (*MockConnection)(nil)

func newMockConnection(name string, o outcome) *MockConnection {
	return &MockConnection{
		name:       name,
		outcome:    o,
		headers:    nethttp.Header{},
		reqHeaders: nethttp.Header{},
	}
}

// NewSuccessConnection returns a connection answering 200 with body.
func NewSuccessConnection(name, body string) *MockConnection {
	c := newMockConnection(name, outcomeSuccess)
	c.status = nethttp.StatusOK
	c.body = body
	return c
}

// NewStatusConnection returns a connection answering a non-error status with body.
func NewStatusConnection(name string, status int, body string) *MockConnection {
	c := NewSuccessConnection(name, body)
	c.status = status
	return c
}

// NewFailureConnection returns a connection answering an error status; body is
// served through the error stream.
func NewFailureConnection(name string, status int, body string) *MockConnection {
	c := newMockConnection(name, outcomeFailure)
	c.status = status
	c.body = body
	return c
}

// NewFailureConnectionNoBody returns a failing connection whose error stream is absent.
func NewFailureConnectionNoBody(name string, status int) *MockConnection {
	c := NewFailureConnection(name, status, "")
	c.noBody = true
	return c
}

// NewTimeoutConnection returns a connection whose input stream times out.
func NewTimeoutConnection(name string) *MockConnection {
	c := newMockConnection(name, outcomeTimeout)
	c.err = fmt.Errorf("%w: read timed out", http.ErrSocketTimeout)
	return c
}

// NewBrokenConnection returns a connection whose exchange fails with err and
// which never produces a status.
func NewBrokenConnection(name string, err error) *MockConnection {
	if err == nil {
		err = errors.New("connection reset")
	}
	c := newMockConnection(name, outcomeBroken)
	c.err = err
	return c
}

// WithHeader adds a response header.
func (c *MockConnection) WithHeader(key string, values ...string) *MockConnection {
	for _, v := range values {
		c.headers.Add(key, v)
	}
	return c
}

// WithDate sets the response date.
func (c *MockConnection) WithDate(t time.Time) *MockConnection {
	c.date = t
	return c
}

// Name returns the label used in the journal.
func (c *MockConnection) Name() string {
	return c.name
}

func (c *MockConnection) attach(j *Journal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.journal = j
}

func (c *MockConnection) record(op Op) {
	c.mu.Lock()
	j := c.journal
	c.mu.Unlock()
	j.record(c.name, op)
}

// SetMethod implements http.Connection
func (c *MockConnection) SetMethod(method string) error {
	c.record(OpSetMethod)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.method = method
	return nil
}

// SetHeader implements http.Connection
func (c *MockConnection) SetHeader(key, value string) {
	c.record(OpSetHeader)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqHeaders.Set(key, value)
}

// Header implements http.Connection
func (c *MockConnection) Header(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reqHeaders.Get(key)
}

// WriteBody implements http.Connection
func (c *MockConnection) WriteBody(body []byte) error {
	c.record(OpWriteBody)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, body...)
	c.bodyWritten = true
	return nil
}

// InputStream implements http.Connection
func (c *MockConnection) InputStream() (io.ReadCloser, error) {
	c.record(OpInputStream)
	switch c.outcome {
	case outcomeSuccess:
		return io.NopCloser(strings.NewReader(c.body)), nil
	case outcomeFailure:
		return nil, fmt.Errorf("%w: %d", http.ErrStatusNotOK, c.status)
	default:
		return nil, c.err
	}
}

// ErrorStream implements http.Connection
func (c *MockConnection) ErrorStream() io.ReadCloser {
	c.record(OpErrorStream)
	if c.outcome != outcomeFailure || c.noBody {
		return nil
	}
	return io.NopCloser(strings.NewReader(c.body))
}

// StatusCode implements http.Connection
func (c *MockConnection) StatusCode() (int, error) {
	c.record(OpStatusCode)
	switch c.outcome {
	case outcomeSuccess, outcomeFailure:
		return c.status, nil
	default:
		return 0, c.err
	}
}

// Date implements http.Connection
func (c *MockConnection) Date() time.Time {
	c.record(OpDate)
	return c.date
}

// HeaderFields implements http.Connection
func (c *MockConnection) HeaderFields() nethttp.Header {
	c.record(OpHeaderFields)
	return c.headers
}

// Close implements http.Connection
func (c *MockConnection) Close() error {
	c.record(OpClose)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Method returns the verb the client set.
func (c *MockConnection) Method() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.method
}

// RequestHeader returns a header the client set.
func (c *MockConnection) RequestHeader(key string) string {
	return c.Header(key)
}

// RequestHeaders returns a copy of every header the client set.
func (c *MockConnection) RequestHeaders() nethttp.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reqHeaders.Clone()
}

// WrittenBody returns the bytes the client wrote.
func (c *MockConnection) WrittenBody() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.written...)
}

// BodyWritten reports whether WriteBody was called at all.
func (c *MockConnection) BodyWritten() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bodyWritten
}

// Closed reports whether the client released the connection.
func (c *MockConnection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
