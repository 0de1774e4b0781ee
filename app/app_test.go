package app

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/config"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/http"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/logger"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/observability"
	testconsts "github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/testing"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/testing/fixtures"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/testing/mocks"
)

const testYAML = `
app:
  name: token-client
http:
  retry:
    delay: 0s
  headers:
    x-client-sku: go
  trace:
    header: x-ms-correlation-id
`

func loaderFor(yamlContent string) func() (*config.Config, error) {
	return func() (*config.Config, error) {
		return config.LoadFromBytes([]byte(yamlContent))
	}
}

func newTestApp(t *testing.T, yamlContent string, factory http.ConnectionFactory) *App {
	t.Helper()
	a, err := NewWithOptions(&Options{
		ConfigLoader:      loaderFor(yamlContent),
		Logger:            logger.New(testconsts.TestLoggerLevelDisabled, false),
		ConnectionFactory: factory,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func tokenURL(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse(testconsts.TestTokenEndpoint)
	require.NoError(t, err)
	return u
}

func TestNewWithOptionsBuildsRetryingClient(t *testing.T) {
	q := fixtures.NewTransientFailureQueue(503)
	a := newTestApp(t, testYAML, q)

	resp, err := a.Client().Get(context.Background(), tokenURL(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, resp.Stats.Attempts)
	assert.Equal(t, 0, q.Remaining())
}

func TestNewWithOptionsBuildsNoRetryClient(t *testing.T) {
	q := fixtures.NewTransientFailureQueue(503)
	a := newTestApp(t, testYAML, q)

	resp, err := a.NoRetryClient().Get(context.Background(), tokenURL(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
	assert.Equal(t, 1, q.Remaining(), "no-retry client must not open a second connection")
}

func TestRetryDisabledByConfig(t *testing.T) {
	q := fixtures.NewTransientFailureQueue(504)
	a := newTestApp(t, `
http:
  retry:
    enabled: false
`, q)

	resp, err := a.Client().Get(context.Background(), tokenURL(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 504, resp.StatusCode)
	assert.Equal(t, 1, q.Remaining())
}

func TestConfiguredHeadersReachTheConnection(t *testing.T) {
	conn := mocks.NewSuccessConnection("only", fixtures.TokenResponseBody)
	q := mocks.NewConnectionQueue(conn)
	a := newTestApp(t, testYAML, q)

	_, err := a.Client().Post(context.Background(), tokenURL(t), nil, []byte("grant_type=client_credentials"), testconsts.TestFormContentType)
	require.NoError(t, err)

	assert.Equal(t, "go", conn.RequestHeader("x-client-sku"))
	assert.NotEmpty(t, conn.RequestHeader("x-ms-correlation-id"))
	assert.Empty(t, conn.RequestHeader("client-request-id"))
}

func TestRequestInterceptorsAreWired(t *testing.T) {
	conn := mocks.NewSuccessConnection("only", fixtures.TokenResponseBody)
	a, err := NewWithOptions(&Options{
		ConfigLoader:      loaderFor(testYAML),
		Logger:            logger.New(testconsts.TestLoggerLevelDisabled, false),
		ConnectionFactory: mocks.NewConnectionQueue(conn),
		RequestInterceptors: []http.RequestInterceptor{
			func(_ context.Context, _ *http.Request, headers map[string]string) error {
				headers["x-app-name"] = "token-client"
				return nil
			},
		},
	})
	require.NoError(t, err)

	_, err = a.Client().Get(context.Background(), tokenURL(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "token-client", conn.RequestHeader("x-app-name"))
}

func TestBasicAuthFromConfig(t *testing.T) {
	conn := mocks.NewSuccessConnection("only", fixtures.TokenResponseBody)
	a := newTestApp(t, `
http:
  auth:
    username: app
    password: s3cret
`, mocks.NewConnectionQueue(conn))

	_, err := a.Client().Post(context.Background(), tokenURL(t), nil, []byte("grant_type=client_credentials"), testconsts.TestFormContentType)
	require.NoError(t, err)
	assert.Equal(t, "Basic YXBwOnMzY3JldA==", conn.RequestHeader("Authorization"))
}

func TestResponseInterceptorsAreWired(t *testing.T) {
	var statuses []int
	a, err := NewWithOptions(&Options{
		ConfigLoader:      loaderFor(testYAML),
		Logger:            logger.New(testconsts.TestLoggerLevelDisabled, false),
		ConnectionFactory: fixtures.NewTransientFailureQueue(500),
		ResponseInterceptors: []http.ResponseInterceptor{
			func(_ context.Context, _ *http.Request, resp *http.Response) error {
				statuses = append(statuses, resp.StatusCode)
				return nil
			},
		},
	})
	require.NoError(t, err)

	_, err = a.Client().Get(context.Background(), tokenURL(t), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{200}, statuses)
}

func TestRateLimitFromConfig(t *testing.T) {
	q := mocks.NewConnectionQueue(
		mocks.NewSuccessConnection("first", fixtures.TokenResponseBody),
		mocks.NewSuccessConnection("second", fixtures.TokenResponseBody),
	)
	a := newTestApp(t, `
http:
  ratelimit:
    rps: 0.001
    burst: 1
`, q)
	assert.True(t, a.Config().HTTP.RateLimit.Enabled())

	_, err := a.Client().Get(context.Background(), tokenURL(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), testconsts.TestShortDelay)
	defer cancel()
	_, err = a.NoRetryClient().Get(ctx, tokenURL(t), nil)
	require.Error(t, err, "clients share one limiter, so the second call waits past the deadline")
	assert.True(t, http.IsErrorType(err, http.NetworkError))
	assert.Equal(t, 1, q.Remaining())
}

func TestConfigLoaderErrorIsReturned(t *testing.T) {
	_, err := NewWithOptions(&Options{
		ConfigLoader: func() (*config.Config, error) { return nil, errors.New("no config") },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestInvalidObservabilityConfigFails(t *testing.T) {
	_, err := NewWithOptions(&Options{
		ConfigLoader: loaderFor(`
observability:
  enabled: true
  trace:
    endpoint: collector:4317
    protocol: udp
`),
		Logger: logger.New(testconsts.TestLoggerLevelDisabled, false),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, observability.ErrInvalidProtocol)
}

func TestObservabilityDisabledByDefault(t *testing.T) {
	a := newTestApp(t, testYAML, mocks.NewConnectionQueue())

	assert.IsType(t, noop.NewTracerProvider(), a.Observability().TracerProvider())
	assert.Equal(t, "token-client", a.Config().App.Name)
	assert.NotNil(t, a.Logger())
}

func TestObservabilityEnabledExportsAttempts(t *testing.T) {
	var buf bytes.Buffer
	q := fixtures.NewSuccessQueue()
	a, err := NewWithOptions(&Options{
		ConfigLoader: loaderFor(`
app:
  name: token-client
observability:
  enabled: true
  metrics:
    enabled: false
`),
		Logger:               logger.New(testconsts.TestLoggerLevelDisabled, false),
		ConnectionFactory:    q,
		ObservabilityOptions: []observability.Option{observability.WithStdoutWriter(&buf), observability.WithoutGlobal()},
	})
	require.NoError(t, err)

	_, err = a.Client().Get(context.Background(), tokenURL(t), nil)
	require.NoError(t, err)
	require.NoError(t, a.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "HTTP GET")
	assert.Contains(t, buf.String(), "identity-http", "service name defaults from config")
}

type failingProvider struct {
	observability.Provider
}

func (failingProvider) Shutdown(context.Context) error {
	return errors.New("exporter stuck")
}

func TestShutdownReportsProviderErrors(t *testing.T) {
	a, err := NewWithOptions(&Options{
		ConfigLoader:          loaderFor(testYAML),
		Logger:                logger.New(testconsts.TestLoggerLevelDisabled, false),
		ConnectionFactory:     mocks.NewConnectionQueue(),
		ObservabilityProvider: failingProvider{Provider: observability.NewNoopProvider()},
	})
	require.NoError(t, err)

	err = a.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "observability: exporter stuck")
}
