package http

import (
	"context"
	"sync/atomic"
	"time"
)

// Do performs one logical request: a first attempt and, when the client retries
// and the first outcome was a 500, 503, 504 or a socket timeout, exactly one more
// attempt after the fixed retry delay.
//
// Failure statuses are returned as responses. The only status that becomes an
// error is a retryable one seen again on the second attempt.
func (c *client) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	callCount := atomic.AddInt64(&c.callCount, 1)

	ctx, traceID := c.withCorrelation(ctx)
	headers, err := c.buildHeaders(ctx, req)
	if err != nil {
		c.logFailure(req, err, traceID, 0)
		return nil, err
	}

	first := c.run(ctx, req, headers, traceID, start, callCount, 1)
	if !c.config.RetryEnabled || !first.retryable() {
		return c.finish(ctx, req, first, traceID, 1)
	}

	c.logRetry(req, retryTrigger(first.resp), traceID, c.config.RetryDelay)
	c.recorder.RecordRetry(ctx, req.Method.String(), retryTrigger(first.resp))

	if err := c.wait(ctx); err != nil {
		c.logFailure(req, err, traceID, 1)
		return nil, err
	}

	second := c.run(ctx, req, headers, traceID, start, callCount, 2)
	if second.err == nil && IsRetryableStatus(second.resp.StatusCode) {
		second = attemptResult{err: NewHTTPError("service unavailable after retry", second.resp.StatusCode, second.resp.Body)}
	}
	return c.finish(ctx, req, second, traceID, 2)
}

func (c *client) run(ctx context.Context, req *Request, headers map[string]string, traceID string, start time.Time, callCount int64, n int) attemptResult {
	var body []byte
	if req.Method.AllowsBody() {
		body = req.Body
	}
	c.logRequest(req, headers, body, traceID, n)

	result := c.attempt(ctx, req, headers, start, callCount, n)
	if result.resp != nil {
		c.logResponse(result.resp, traceID, n)
	}
	return result
}

// finish logs terminal errors and hands the final response to the response interceptors.
func (c *client) finish(ctx context.Context, req *Request, result attemptResult, traceID string, attempts int) (*Response, error) {
	if result.err != nil {
		c.logFailure(req, result.err, traceID, attempts)
		return nil, result.err
	}
	if err := c.runResponseInterceptors(ctx, req, result.resp); err != nil {
		c.logFailure(req, err, traceID, attempts)
		return nil, err
	}
	return result.resp, nil
}

// wait blocks for the retry delay or until ctx is done.
func (c *client) wait(ctx context.Context) error {
	if c.config.RetryDelay <= 0 {
		if err := ctx.Err(); err != nil {
			return NewNetworkError("request canceled before retry", err)
		}
		return nil
	}

	timer := time.NewTimer(c.config.RetryDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return NewNetworkError("request canceled before retry", ctx.Err())
	case <-timer.C:
		return nil
	}
}
