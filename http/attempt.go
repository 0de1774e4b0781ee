package http

import (
	"context"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/logger"
)

const headerContentType = "Content-Type"

// attemptResult is the outcome of one connection: either a response or an error.
type attemptResult struct {
	resp *Response
	err  error
}

// retryable reports whether the outcome earns the single retry.
func (r attemptResult) retryable() bool {
	if r.err != nil {
		return IsErrorType(r.err, TimeoutError)
	}
	return r.resp != nil && IsRetryableStatus(r.resp.StatusCode)
}

// attempt performs one exchange on a fresh connection and reads only what the
// outcome requires:
//
//	success: InputStream, StatusCode, HeaderFields
//	failure: InputStream, ErrorStream, StatusCode, Date, HeaderFields
//	timeout: InputStream
//
// The connection is closed before attempt returns.
func (c *client) attempt(ctx context.Context, req *Request, headers map[string]string, start time.Time, callCount int64, n int) attemptResult {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return attemptResult{err: NewNetworkError("rate limiter wait failed", err)}
		}
	}

	tracked := c.recorder.StartAttempt(ctx, req.Method.String(), req.URL.Host, n)
	logger.IncrementHTTPCounter(ctx)

	result := c.exchange(tracked.Context(), req, headers)

	status := 0
	errType := ""
	if result.resp != nil {
		status = result.resp.StatusCode
	}
	if result.err != nil {
		errType = errorTypeOf(result.err)
	}
	elapsed := c.recorder.EndAttempt(tracked, status, errType)
	logger.AddHTTPElapsed(ctx, elapsed.Nanoseconds())

	if result.resp != nil {
		result.resp.Stats = Stats{
			ElapsedTime: time.Since(start),
			CallCount:   callCount,
			Attempts:    n,
		}
	}
	return result
}

func (c *client) exchange(ctx context.Context, req *Request, headers map[string]string) attemptResult {
	conn, err := c.factory.Open(ctx, req.URL)
	if err != nil {
		if IsSocketTimeout(err) {
			return attemptResult{err: NewTimeoutError("connect timed out", err)}
		}
		return attemptResult{err: NewNetworkError("failed to open connection", err)}
	}
	defer conn.Close()

	if err := writeRequest(conn, req, headers); err != nil {
		return attemptResult{err: err}
	}

	stream, err := conn.InputStream()
	if err == nil {
		return readSuccess(conn, stream)
	}
	if IsSocketTimeout(err) {
		return attemptResult{err: NewTimeoutError("read timed out", err)}
	}
	return readFailure(conn)
}

// writeRequest configures the connection. Bodies and Content-Type are only
// written for verbs that carry a body.
func writeRequest(conn Connection, req *Request, headers map[string]string) error {
	if err := conn.SetMethod(req.Method.String()); err != nil {
		return NewNetworkError("failed to set request method", err)
	}

	allowsBody := req.Method.AllowsBody()
	for k, v := range headers {
		if !allowsBody && strings.EqualFold(k, headerContentType) {
			continue
		}
		conn.SetHeader(k, v)
	}

	if !allowsBody || len(req.Body) == 0 {
		return nil
	}
	if req.ContentType != "" {
		conn.SetHeader(headerContentType, req.ContentType)
	}
	if err := conn.WriteBody(req.Body); err != nil {
		if IsSocketTimeout(err) {
			return NewTimeoutError("write timed out", err)
		}
		return NewNetworkError("failed to write request body", err)
	}
	return nil
}

func readSuccess(conn Connection, stream io.ReadCloser) attemptResult {
	body, err := drain(stream)
	if err != nil {
		return attemptResult{err: err}
	}

	status, err := conn.StatusCode()
	if err != nil {
		return attemptResult{err: NewNetworkError("failed to read response status", err)}
	}

	return attemptResult{resp: &Response{
		StatusCode: status,
		Body:       body,
		Headers:    cloneHeaders(conn.HeaderFields()),
	}}
}

func readFailure(conn Connection) attemptResult {
	body, err := drain(conn.ErrorStream())
	if err != nil {
		return attemptResult{err: err}
	}

	status, err := conn.StatusCode()
	if err != nil {
		return attemptResult{err: NewNetworkError("failed to read response status", err)}
	}

	date := conn.Date()
	return attemptResult{resp: &Response{
		StatusCode: status,
		Body:       body,
		Headers:    cloneHeaders(conn.HeaderFields()),
		Date:       date,
	}}
}

// drain reads and closes stream. A nil stream is an empty body.
func drain(stream io.ReadCloser) (string, error) {
	if stream == nil {
		return "", nil
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		if IsSocketTimeout(err) {
			return "", NewTimeoutError("response body read timed out", err)
		}
		return "", NewNetworkError("failed to read response body", err)
	}
	return string(data), nil
}

func cloneHeaders(h nethttp.Header) nethttp.Header {
	if h == nil {
		return nethttp.Header{}
	}
	return h.Clone()
}

func errorTypeOf(err error) string {
	for _, t := range []ErrorType{TimeoutError, NetworkError, HTTPError, ValidationError, InterceptorError} {
		if IsErrorType(err, t) {
			return string(t)
		}
	}
	return "error"
}
