package http_test

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/http"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/logger"
	testconsts "github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/testing"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/testing/fixtures"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/testing/mocks"
)

var (
	successReadOps = []mocks.Op{mocks.OpInputStream, mocks.OpStatusCode, mocks.OpHeaderFields}
	failureReadOps = []mocks.Op{mocks.OpInputStream, mocks.OpErrorStream, mocks.OpStatusCode, mocks.OpDate, mocks.OpHeaderFields}
	timeoutReadOps = []mocks.Op{mocks.OpInputStream}
)

func newTestBuilder(factory http.ConnectionFactory) *http.Builder {
	return http.NewBuilder(logger.New(testconsts.TestLoggerLevelDisabled, false)).
		WithConnectionFactory(factory).
		WithRetryDelay(0)
}

func newRetryClient(factory http.ConnectionFactory) http.Client {
	return newTestBuilder(factory).Build()
}

func newNoRetryClient(factory http.ConnectionFactory) http.Client {
	return newTestBuilder(factory).WithoutRetry().Build()
}

func tokenURL(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse(testconsts.TestTokenEndpoint)
	require.NoError(t, err)
	return u
}

func TestNonRetryableStatusUsesOneConnection(t *testing.T) {
	for _, status := range []int{400, 401, 404, 499} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			q := mocks.NewConnectionQueue(
				mocks.NewFailureConnection("first", status, fixtures.InvalidGrantBody),
				mocks.NewSuccessConnection("unused", fixtures.TokenResponseBody),
			)

			resp, err := newRetryClient(q).Get(context.Background(), tokenURL(t), nil)

			require.NoError(t, err)
			assert.Equal(t, status, resp.StatusCode)
			assert.Equal(t, fixtures.InvalidGrantBody, resp.Body)
			assert.Equal(t, 1, resp.Stats.Attempts)
			assert.Equal(t, 1, q.Remaining())
			assert.Equal(t, failureReadOps, q.Journal().ReadOps("first"))
		})
	}
}

func TestRetryableStatusThenSuccess(t *testing.T) {
	for _, status := range []int{500, 503, 504} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			q := fixtures.NewTransientFailureQueue(status)

			resp, err := newRetryClient(q).Post(context.Background(), tokenURL(t), nil, []byte("grant_type=x"), testconsts.TestFormContentType)

			require.NoError(t, err)
			assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
			assert.Equal(t, fixtures.TokenResponseBody, resp.Body)
			assert.True(t, resp.Date.IsZero())
			assert.Equal(t, 2, resp.Stats.Attempts)
			assert.Equal(t, 0, q.Remaining())
			assert.Len(t, q.Opened(), 2)
			assert.Equal(t, successReadOps, q.Journal().ReadOps("recovered"))
		})
	}
}

func TestRetryableStatusTwiceFails(t *testing.T) {
	for _, status := range []int{500, 503, 504} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			q := mocks.NewConnectionQueue(
				mocks.NewFailureConnection("first", status, fixtures.ErrorResponseBody),
				mocks.NewFailureConnection("second", status, fixtures.ErrorResponseBody),
				mocks.NewSuccessConnection("third", fixtures.TokenResponseBody),
			)

			resp, err := newRetryClient(q).Get(context.Background(), tokenURL(t), nil)

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, http.IsErrorType(err, http.HTTPError))
			assert.True(t, http.IsHTTPStatusError(err, status))
			body, ok := http.HTTPErrorBody(err)
			assert.True(t, ok)
			assert.Equal(t, fixtures.ErrorResponseBody, body)
			assert.Equal(t, 1, q.Remaining())
			assert.Empty(t, q.Journal().Ops("third"))
		})
	}
}

func TestTimeoutThenSuccess(t *testing.T) {
	q := fixtures.NewTimeoutThenSuccessQueue()

	resp, err := newRetryClient(q).Get(context.Background(), tokenURL(t), nil)

	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, fixtures.TokenResponseBody, resp.Body)
	assert.Equal(t, 0, q.Remaining())

	journal := q.Journal()
	assert.Equal(t, timeoutReadOps, journal.ReadOps("timeout"))
	assert.Zero(t, journal.Count("timeout", mocks.OpStatusCode))
	assert.Zero(t, journal.Count("timeout", mocks.OpHeaderFields))
	assert.Equal(t, successReadOps, journal.ReadOps("recovered"))
}

func TestTimeoutTwiceReturnsTimeoutError(t *testing.T) {
	q := mocks.NewConnectionQueue(mocks.NewTimeoutConnection("first"), mocks.NewTimeoutConnection("second"))

	resp, err := newRetryClient(q).Get(context.Background(), tokenURL(t), nil)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, http.IsErrorType(err, http.TimeoutError))
	assert.ErrorIs(t, err, http.ErrSocketTimeout)
	assert.Equal(t, 0, q.Remaining())
}

func TestRetryableStatusThenNonRetryableStatusIsReturned(t *testing.T) {
	q := mocks.NewConnectionQueue(
		mocks.NewFailureConnection("first", 503, fixtures.ErrorResponseBody),
		mocks.NewFailureConnection("second", 400, fixtures.InvalidGrantBody),
	)

	resp, err := newRetryClient(q).Get(context.Background(), tokenURL(t), nil)

	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, fixtures.InvalidGrantBody, resp.Body)
}

func TestNoRetryModeIsTerminalOnFirstOutcome(t *testing.T) {
	for _, status := range []int{200, 400, 500, 503, 504} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			first := mocks.NewFailureConnection("first", status, fixtures.ErrorResponseBody)
			if status == 200 {
				first = mocks.NewSuccessConnection("first", fixtures.TokenResponseBody)
			}
			q := mocks.NewConnectionQueue(first, mocks.NewSuccessConnection("unused", fixtures.TokenResponseBody))

			resp, err := newNoRetryClient(q).Get(context.Background(), tokenURL(t), nil)

			require.NoError(t, err)
			assert.Equal(t, status, resp.StatusCode)
			assert.Equal(t, 1, q.Remaining())
		})
	}

	t.Run("timeout", func(t *testing.T) {
		q := mocks.NewConnectionQueue(mocks.NewTimeoutConnection("first"), mocks.NewSuccessConnection("unused", ""))

		resp, err := newNoRetryClient(q).Get(context.Background(), tokenURL(t), nil)

		require.Error(t, err)
		assert.Nil(t, resp)
		assert.True(t, http.IsErrorType(err, http.TimeoutError))
		assert.Equal(t, 1, q.Remaining())
	})
}

func TestNoRetryFailureReadsSameAccessorsAsRetryPath(t *testing.T) {
	date := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	q := mocks.NewConnectionQueue(mocks.NewFailureConnection("first", 503, "busy").WithDate(date))

	resp, err := newNoRetryClient(q).Get(context.Background(), tokenURL(t), nil)

	require.NoError(t, err)
	assert.Equal(t, date, resp.Date)
	assert.Equal(t, failureReadOps, q.Journal().ReadOps("first"))
}

func TestBodyRulesPerVerb(t *testing.T) {
	body := []byte("client_id=abc")
	u := tokenURL(t)

	tests := []struct {
		name   string
		call   func(c http.Client) (*http.Response, error)
		method string
		body   bool
	}{
		{name: "get", method: "GET", call: func(c http.Client) (*http.Response, error) {
			return c.SendWithMethod(context.Background(), "GET", u, nil, body, testconsts.TestFormContentType)
		}},
		{name: "head", method: "HEAD", call: func(c http.Client) (*http.Response, error) {
			return c.SendWithMethod(context.Background(), "head", u, nil, body, testconsts.TestFormContentType)
		}},
		{name: "trace", method: "TRACE", call: func(c http.Client) (*http.Response, error) {
			return c.SendWithMethod(context.Background(), "TRACE", u, nil, body, testconsts.TestFormContentType)
		}},
		{name: "post", method: "POST", body: true, call: func(c http.Client) (*http.Response, error) {
			return c.Post(context.Background(), u, nil, body, testconsts.TestFormContentType)
		}},
		{name: "put", method: "PUT", body: true, call: func(c http.Client) (*http.Response, error) {
			return c.Put(context.Background(), u, nil, body, testconsts.TestFormContentType)
		}},
		{name: "patch", method: "PATCH", body: true, call: func(c http.Client) (*http.Response, error) {
			return c.Patch(context.Background(), u, nil, body, testconsts.TestFormContentType)
		}},
		{name: "delete", method: "DELETE", body: true, call: func(c http.Client) (*http.Response, error) {
			return c.Delete(context.Background(), u, nil, body, testconsts.TestFormContentType)
		}},
		{name: "options", method: "OPTIONS", body: true, call: func(c http.Client) (*http.Response, error) {
			return c.Options(context.Background(), u, nil, body, testconsts.TestFormContentType)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := mocks.NewSuccessConnection("conn", "")
			q := mocks.NewConnectionQueue(conn)

			_, err := tt.call(newRetryClient(q))
			require.NoError(t, err)

			assert.Equal(t, tt.method, conn.Method())
			assert.Equal(t, tt.body, conn.BodyWritten())
			if tt.body {
				assert.Equal(t, body, conn.WrittenBody())
				assert.Equal(t, testconsts.TestFormContentType, conn.RequestHeader("Content-Type"))
			} else {
				assert.Empty(t, conn.WrittenBody())
				assert.Empty(t, conn.RequestHeader("Content-Type"))
			}
		})
	}
}

func TestBodylessVerbDropsCallerContentTypeHeader(t *testing.T) {
	conn := mocks.NewSuccessConnection("conn", "")
	q := mocks.NewConnectionQueue(conn)

	_, err := newRetryClient(q).Get(context.Background(), tokenURL(t), map[string]string{"content-type": "text/plain", "Accept": "application/json"})

	require.NoError(t, err)
	assert.Empty(t, conn.RequestHeader("Content-Type"))
	assert.Equal(t, "application/json", conn.RequestHeader("Accept"))
}

func TestEmptyBodyIsNotWritten(t *testing.T) {
	conn := mocks.NewSuccessConnection("conn", "")
	q := mocks.NewConnectionQueue(conn)

	_, err := newRetryClient(q).Post(context.Background(), tokenURL(t), nil, nil, testconsts.TestJSONContentType)

	require.NoError(t, err)
	assert.False(t, conn.BodyWritten())
	assert.Empty(t, conn.RequestHeader("Content-Type"))
}

func TestNilURLFailsWithoutConnections(t *testing.T) {
	q := fixtures.NewSuccessQueue()
	c := newRetryClient(q)

	calls := map[string]func() (*http.Response, error){
		"get":  func() (*http.Response, error) { return c.Get(context.Background(), nil, nil) },
		"post": func() (*http.Response, error) { return c.Post(context.Background(), nil, nil, []byte("x"), "") },
		"send": func() (*http.Response, error) {
			return c.SendWithMethod(context.Background(), "PUT", nil, nil, nil, "")
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			resp, err := call()
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, http.IsErrorType(err, http.ValidationError))
			assert.Equal(t, 1, q.Remaining())
			assert.Empty(t, q.Journal().Calls())
		})
	}
}

func TestInvalidRequests(t *testing.T) {
	q := fixtures.NewSuccessQueue()
	c := newRetryClient(q)

	_, err := c.Do(context.Background(), nil)
	assert.True(t, http.IsErrorType(err, http.ValidationError))

	_, err = c.Do(context.Background(), &http.Request{URL: tokenURL(t)})
	assert.True(t, http.IsErrorType(err, http.ValidationError))

	_, err = c.SendWithMethod(context.Background(), "CONNECT", tokenURL(t), nil, nil, "")
	assert.True(t, http.IsErrorType(err, http.ValidationError))

	assert.Equal(t, 1, q.Remaining())
}

func TestAbsentErrorBodyIsEmptyString(t *testing.T) {
	for _, status := range []int{400, 401, 404} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			q := mocks.NewConnectionQueue(mocks.NewFailureConnectionNoBody("first", status))

			resp, err := newRetryClient(q).Get(context.Background(), tokenURL(t), nil)

			require.NoError(t, err)
			assert.Equal(t, status, resp.StatusCode)
			assert.Equal(t, "", resp.Body)
			assert.NotNil(t, resp.Headers)
		})
	}
}

func TestFirstConnectionClosedBeforeSecondOpened(t *testing.T) {
	q := fixtures.NewTransientFailureQueue(503)

	_, err := newRetryClient(q).Get(context.Background(), tokenURL(t), nil)
	require.NoError(t, err)

	journal := q.Journal()
	closeFirst := journal.Index("transient", mocks.OpClose)
	openSecond := journal.Index("recovered", mocks.OpOpen)
	require.NotEqual(t, -1, closeFirst)
	require.NotEqual(t, -1, openSecond)
	assert.Less(t, closeFirst, openSecond)

	for _, conn := range q.Opened() {
		assert.True(t, conn.Closed(), conn.Name())
		assert.Equal(t, 1, journal.Count(conn.Name(), mocks.OpClose))
	}

	ops := journal.Ops("recovered")
	assert.Equal(t, mocks.OpClose, ops[len(ops)-1])
}

func TestSuccessResponseHeadersAndNoDate(t *testing.T) {
	date := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	conn := mocks.NewSuccessConnection("conn", fixtures.TokenResponseBody).
		WithHeader("X-Ms-Request-Id", "abc").
		WithHeader("Set-Cookie", "a=1", "b=2").
		WithDate(date)
	q := mocks.NewConnectionQueue(conn)

	resp, err := newRetryClient(q).Get(context.Background(), tokenURL(t), nil)

	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Headers.Get("X-Ms-Request-Id"))
	assert.Equal(t, []string{"a=1", "b=2"}, resp.Headers.Values("Set-Cookie"))
	assert.True(t, resp.Date.IsZero())
	assert.Zero(t, q.Journal().Count("conn", mocks.OpDate))
	assert.Zero(t, q.Journal().Count("conn", mocks.OpErrorStream))
}

func TestBrokenConnectionIsNetworkError(t *testing.T) {
	cause := errors.New("connection reset by peer")
	q := mocks.NewConnectionQueue(mocks.NewBrokenConnection("broken", cause), mocks.NewSuccessConnection("unused", ""))

	resp, err := newRetryClient(q).Get(context.Background(), tokenURL(t), nil)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, http.IsErrorType(err, http.NetworkError))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, q.Remaining())
	assert.True(t, q.Opened()[0].Closed())
}

func TestOpenFailures(t *testing.T) {
	t.Run("network_error_not_retried", func(t *testing.T) {
		f := &mocks.MockConnectionFactory{}
		f.ExpectOpenError(errors.New("dial tcp: connection refused"))

		_, err := newRetryClient(f).Get(context.Background(), tokenURL(t), nil)

		assert.True(t, http.IsErrorType(err, http.NetworkError))
		f.AssertExpectations(t)
		f.AssertNumberOfCalls(t, "Open", 1)
	})

	t.Run("connect_timeout_retried", func(t *testing.T) {
		f := &mocks.MockConnectionFactory{}
		f.ExpectOpenError(context.DeadlineExceeded)
		f.ExpectOpen(mocks.NewSuccessConnection("second", "ok"))

		resp, err := newRetryClient(f).Get(context.Background(), tokenURL(t), nil)

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Body)
		f.AssertExpectations(t)
	})
}

func TestContextCanceledDuringBackoff(t *testing.T) {
	q := fixtures.NewTransientFailureQueue(503)
	c := newTestBuilder(q).WithRetryDelay(time.Hour).Build()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(testconsts.TestShortDelay, cancel)

	start := time.Now()
	resp, err := c.Get(ctx, tokenURL(t), nil)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, http.IsErrorType(err, http.NetworkError))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, 1, q.Remaining())
}

func TestRetryDelayIsApplied(t *testing.T) {
	q := fixtures.NewTransientFailureQueue(500)
	delay := 50 * time.Millisecond
	c := newTestBuilder(q).WithRetryDelay(delay).Build()

	start := time.Now()
	_, err := c.Get(context.Background(), tokenURL(t), nil)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), delay)
}

func TestStatsCallCountIncrements(t *testing.T) {
	q := mocks.NewConnectionQueue(
		mocks.NewSuccessConnection("a", ""),
		mocks.NewSuccessConnection("b", ""),
	)
	c := newRetryClient(q)

	first, err := c.Get(context.Background(), tokenURL(t), nil)
	require.NoError(t, err)
	second, err := c.Get(context.Background(), tokenURL(t), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Stats.CallCount)
	assert.Equal(t, int64(2), second.Stats.CallCount)
}

func TestHTTPCounterInContext(t *testing.T) {
	q := fixtures.NewTransientFailureQueue(504)
	ctx := logger.WithHTTPCounter(context.Background())

	_, err := newRetryClient(q).Get(ctx, tokenURL(t), nil)

	require.NoError(t, err)
	assert.Equal(t, int64(2), logger.GetHTTPCounter(ctx))
}

func TestURLPassedToFactory(t *testing.T) {
	q := fixtures.NewTransientFailureQueue(503)
	u := tokenURL(t)

	_, err := newRetryClient(q).Get(context.Background(), u, nil)

	require.NoError(t, err)
	urls := q.URLs()
	require.Len(t, urls, 2)
	assert.Same(t, u, urls[0])
	assert.Same(t, u, urls[1])
}
