package http

import (
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/logger"
)

const (
	defaultMaxPayloadLogBytes = 1024

	logMsgRequest  = "HTTP client request"
	logMsgResponse = "HTTP client response"
	logMsgRetry    = "HTTP client retrying request"
	logMsgFailure  = "HTTP client request failed"
)

// logFilter masks identity secrets in URLs and bodies before they reach any Logger,
// including implementations that do no filtering of their own.
var logFilter = logger.NewSensitiveDataFilter(nil)

func loggableURL(u *url.URL) string {
	return logFilter.FilterURL(u.String())
}

func (c *client) payloadLimit() int {
	if c.config.MaxPayloadLogBytes > 0 {
		return c.config.MaxPayloadLogBytes
	}
	return defaultMaxPayloadLogBytes
}

func preview(body []byte, limit int) (data []byte, truncated string) {
	if len(body) > limit {
		return body[:limit], "true"
	}
	return body, "false"
}

// logRequest logs one outbound attempt. Header values go through the logger's sensitive-field filter.
func (c *client) logRequest(req *Request, headers map[string]string, body []byte, traceID string, attempt int) {
	event := c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method.String()).
		Str("url", loggableURL(req.URL)).
		Int("attempt", attempt)

	if traceID != "" {
		event = event.Str("request_id", traceID)
	}
	if len(headers) > 0 {
		event = event.Int("header_count", len(headers))
	}
	if len(body) > 0 {
		event = event.Int("body_size", len(body))
	}
	event.Msg(logMsgRequest)

	if !c.config.LogPayloads {
		return
	}

	debug := c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method.String()).
		Str("request_id", traceID).
		Interface("headers", headers)
	if len(body) > 0 {
		data, truncated := preview(logFilter.FilterBody(req.ContentType, body), c.payloadLimit())
		debug = debug.
			Int("body_size", len(body)).
			Str("body_truncated", truncated).
			Bytes("body_preview", data)
	}
	debug.Msg(logMsgRequest)
}

// logResponse logs one completed attempt, success or failure status alike.
func (c *client) logResponse(resp *Response, traceID string, attempt int) {
	event := c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Int("attempt", attempt)

	if traceID != "" {
		event = event.Str("request_id", traceID)
	}
	if len(resp.Body) > 0 {
		event = event.Int("body_size", len(resp.Body))
	}
	event.Msg(logMsgResponse)

	if !c.config.LogPayloads {
		return
	}

	debug := c.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Str("request_id", traceID).
		Interface("headers", resp.Headers)
	if len(resp.Body) > 0 {
		data, truncated := preview(logFilter.FilterBody(resp.Headers.Get("Content-Type"), []byte(resp.Body)), c.payloadLimit())
		debug = debug.
			Int("body_size", len(resp.Body)).
			Str("body_truncated", truncated).
			Bytes("body_preview", data)
	}
	debug.Msg(logMsgResponse)
}

// logRetry logs the decision to retry. trigger is the status code or "timeout".
func (c *client) logRetry(req *Request, trigger, traceID string, delay time.Duration) {
	c.logger.Warn().
		Str("method", req.Method.String()).
		Str("url", loggableURL(req.URL)).
		Str("trigger", trigger).
		Str("request_id", traceID).
		Dur("delay", delay).
		Msg(logMsgRetry)
}

// logFailure logs a logical request that ended in an error.
func (c *client) logFailure(req *Request, err error, traceID string, attempts int) {
	event := c.logger.Error().
		Err(err).
		Str("method", req.Method.String()).
		Str("url", loggableURL(req.URL)).
		Int("attempts", attempts)
	if traceID != "" {
		event = event.Str("request_id", traceID)
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		event = event.Str("error_type", string(clientErr.Type()))
	}
	event.Msg(logMsgFailure)
}

func retryTrigger(resp *Response) string {
	if resp == nil {
		return string(TimeoutError)
	}
	return strconv.Itoa(resp.StatusCode)
}
