package logger

import (
	"context"
	"sync/atomic"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// httpCounterKey tracks outbound HTTP attempts per logical operation
	httpCounterKey contextKey = "http_attempt_counter"
	// httpElapsedKey tracks total outbound HTTP time per logical operation
	httpElapsedKey contextKey = "http_elapsed_nanos"
)

// WithHTTPCounter creates a context that accumulates HTTP attempt counts and elapsed time.
// An operation that sends several requests (discovery, then token) shares one counter.
func WithHTTPCounter(ctx context.Context) context.Context {
	counter := int64(0)
	elapsed := int64(0)
	ctx = context.WithValue(ctx, httpCounterKey, &counter)
	ctx = context.WithValue(ctx, httpElapsedKey, &elapsed)
	return ctx
}

// IncrementHTTPCounter increments the HTTP attempt counter in the context
func IncrementHTTPCounter(ctx context.Context) {
	if counter, ok := ctx.Value(httpCounterKey).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
}

// GetHTTPCounter returns the current HTTP attempt count from the context
func GetHTTPCounter(ctx context.Context) int64 {
	if counter, ok := ctx.Value(httpCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// AddHTTPElapsed adds elapsed nanoseconds to the HTTP elapsed time in the context
func AddHTTPElapsed(ctx context.Context, nanos int64) {
	if elapsed, ok := ctx.Value(httpElapsedKey).(*int64); ok && elapsed != nil {
		atomic.AddInt64(elapsed, nanos)
	}
}

// GetHTTPElapsed returns the accumulated HTTP elapsed time in nanoseconds
func GetHTTPElapsed(ctx context.Context) int64 {
	if elapsed, ok := ctx.Value(httpElapsedKey).(*int64); ok && elapsed != nil {
		return atomic.LoadInt64(elapsed)
	}
	return 0
}
