// Package tracking records spans and metrics for outbound HTTP attempts.
package tracking

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/observability"
)

const (
	instrumentationName = "identity/http"

	// Metric names following OpenTelemetry HTTP client semantic conventions
	metricRequestDuration = "http.client.request.duration" // Histogram in seconds
	metricAttempts        = "http.client.attempts"
	metricRetries         = "http.client.retries"

	attrMethod       = "http.request.method"
	attrStatusCode   = "http.response.status_code"
	attrServerAddr   = "server.address"
	attrResendCount  = "http.request.resend_count"
	attrErrorType    = "error.type"
	attrRetryTrigger = "retry.trigger"
)

// Recorder owns the tracer and the metric instruments of one client.
// A zero-value instrument (failed creation) is skipped silently.
type Recorder struct {
	tracer   trace.Tracer
	duration metric.Float64Histogram
	attempts metric.Int64Counter
	retries  metric.Int64Counter
}

// Attempt is an in-flight attempt started by StartAttempt.
type Attempt struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize HTTP metric %s: %v\n", metricName, err)
	}
}

// NewRecorder creates a recorder. Nil providers fall back to the global ones.
func NewRecorder(tp trace.TracerProvider, mp metric.MeterProvider) *Recorder {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(instrumentationName)
	r := &Recorder{tracer: tp.Tracer(instrumentationName)}

	var err error
	r.duration, err = observability.CreateHistogram(meter,
		metricRequestDuration,
		"Duration of outbound HTTP attempts",
		metric.WithUnit("s"),
	)
	logMetricError(metricRequestDuration, err)

	r.attempts, err = observability.CreateCounter(meter,
		metricAttempts,
		"Number of outbound HTTP attempts",
		metric.WithUnit("{attempt}"),
	)
	logMetricError(metricAttempts, err)

	r.retries, err = observability.CreateCounter(meter,
		metricRetries,
		"Number of retries scheduled after a retryable outcome",
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricRetries, err)

	return r
}

// StartAttempt opens a client span for attempt number n (1-based).
func (r *Recorder) StartAttempt(ctx context.Context, method, host string, n int) *Attempt {
	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrServerAddr, host),
	}
	spanAttrs := attrs
	if n > 1 {
		spanAttrs = append(spanAttrs[:len(spanAttrs):len(spanAttrs)], attribute.Int(attrResendCount, n-1))
	}

	ctx, span := r.tracer.Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(spanAttrs...),
	)
	return &Attempt{ctx: ctx, span: span, start: time.Now(), attrs: attrs}
}

// Context returns the span context of the attempt.
func (a *Attempt) Context() context.Context {
	return a.ctx
}

// EndAttempt closes the span and records the attempt metrics.
// statusCode is 0 when no status was read; errorType is empty on success.
func (r *Recorder) EndAttempt(a *Attempt, statusCode int, errorType string) time.Duration {
	elapsed := time.Since(a.start)
	attrs := a.attrs

	if statusCode > 0 {
		attrs = append(attrs[:len(attrs):len(attrs)], attribute.Int(attrStatusCode, statusCode))
		a.span.SetAttributes(attribute.Int(attrStatusCode, statusCode))
	}

	switch {
	case errorType != "":
		attrs = append(attrs[:len(attrs):len(attrs)], attribute.String(attrErrorType, errorType))
		a.span.SetAttributes(attribute.String(attrErrorType, errorType))
		a.span.SetStatus(codes.Error, errorType)
	case statusCode >= 500:
		attrs = append(attrs[:len(attrs):len(attrs)], attribute.String(attrErrorType, strconv.Itoa(statusCode)))
		a.span.SetStatus(codes.Error, strconv.Itoa(statusCode))
	}
	a.span.End()

	opt := metric.WithAttributes(attrs...)
	if r.duration != nil {
		r.duration.Record(a.ctx, elapsed.Seconds(), opt)
	}
	if r.attempts != nil {
		r.attempts.Add(a.ctx, 1, opt)
	}
	return elapsed
}

// RecordRetry counts a scheduled retry. trigger is the status code or "timeout".
func (r *Recorder) RecordRetry(ctx context.Context, method, trigger string) {
	if r.retries == nil {
		return
	}
	r.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrRetryTrigger, trigger),
	))
}
