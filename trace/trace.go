// Package trace carries correlation identifiers for outbound requests.
// A logical request keeps the same identifiers across its attempts so the
// service can correlate a retry with the call that triggered it.
package trace

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	traceIDKey     contextKey = "trace_id"
	traceParentKey contextKey = "traceparent"
	traceStateKey  contextKey = "tracestate"
)

const (
	// HeaderClientRequestID is the correlation header identity services echo back
	HeaderClientRequestID = "client-request-id"
	// HeaderReturnClientRequestID asks the service to echo the correlation header
	HeaderReturnClientRequestID = "return-client-request-id"
	// HeaderXRequestID is the generic request tracing header
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
	// HeaderTraceState is the W3C trace context "tracestate" header name
	HeaderTraceState = "tracestate"
)

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// IDFromContext returns a trace ID from context if present
func IDFromContext(ctx context.Context) (string, bool) {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok && traceID != "" {
		return traceID, true
	}
	return "", false
}

// NewID returns a random UUID string.
func NewID() string {
	return uuid.New().String()
}

// EnsureTraceID returns ctx carrying a trace ID, generating one with gen when absent.
// A nil gen falls back to NewID.
func EnsureTraceID(ctx context.Context, gen func() string) (context.Context, string) {
	if traceID, ok := IDFromContext(ctx); ok {
		return ctx, traceID
	}
	if gen == nil {
		gen = NewID
	}
	traceID := gen()
	if traceID == "" {
		traceID = NewID()
	}
	return WithTraceID(ctx, traceID), traceID
}

// WithTraceParent adds a W3C traceparent value to the context
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// ParentFromContext returns a traceparent from context if present
func ParentFromContext(ctx context.Context) (string, bool) {
	if tp, ok := ctx.Value(traceParentKey).(string); ok && tp != "" {
		return tp, true
	}
	return "", false
}

// WithTraceState adds a W3C tracestate value to the context
func WithTraceState(ctx context.Context, traceState string) context.Context {
	return context.WithValue(ctx, traceStateKey, traceState)
}

// StateFromContext returns a tracestate from context if present
func StateFromContext(ctx context.Context) (string, bool) {
	if ts, ok := ctx.Value(traceStateKey).(string); ok && ts != "" {
		return ts, true
	}
	return "", false
}

// EnsureTraceParent returns ctx carrying a valid traceparent, generating one when
// the context has none or holds a malformed value.
func EnsureTraceParent(ctx context.Context) (context.Context, string) {
	if tp, ok := ParentFromContext(ctx); ok && ValidTraceParent(tp) {
		return ctx, tp
	}
	tp := GenerateTraceParent()
	return WithTraceParent(ctx, tp), tp
}

// GenerateTraceParent creates a minimal W3C traceparent header value.
// Format: version(2)-trace-id(32)-span-id(16)-flags(2), e.g., "00-<32>-<16>-01"
func GenerateTraceParent() string {
	traceID := make([]byte, 16)
	spanID := make([]byte, 8)
	if _, err := crand.Read(traceID); err != nil {
		clear(traceID)
	}
	if _, err := crand.Read(spanID); err != nil {
		clear(spanID)
	}
	if allZero(traceID) {
		traceID[len(traceID)-1] = 0x01
	}
	if allZero(spanID) {
		spanID[len(spanID)-1] = 0x01
	}
	return "00-" + hex.EncodeToString(traceID) + "-" + hex.EncodeToString(spanID) + "-01"
}

// ValidTraceParent checks the version-00 layout and rejects all-zero IDs.
func ValidTraceParent(tp string) bool {
	parts := strings.Split(tp, "-")
	if len(parts) != 4 {
		return false
	}
	if len(parts[0]) != 2 || len(parts[1]) != 32 || len(parts[2]) != 16 || len(parts[3]) != 2 {
		return false
	}
	decoded := make([][]byte, 0, 4)
	for _, p := range parts {
		if strings.ToLower(p) != p {
			return false
		}
		b, err := hex.DecodeString(p)
		if err != nil {
			return false
		}
		decoded = append(decoded, b)
	}
	return decoded[0][0] != 0xff && !allZero(decoded[1]) && !allZero(decoded[2])
}

// InjectOptions controls which headers Inject writes.
type InjectOptions struct {
	// IDHeader names the correlation header; empty disables it
	IDHeader string
	// W3C also writes traceparent and, when present in the context, tracestate
	W3C bool
}

// Inject writes the context's identifiers into headers. Values already set by
// the caller (matched case-insensitively) are preserved.
func Inject(ctx context.Context, headers map[string]string, opts InjectOptions) {
	if opts.IDHeader != "" {
		if id, ok := IDFromContext(ctx); ok {
			setIfAbsent(headers, opts.IDHeader, id)
		}
	}
	if !opts.W3C {
		return
	}
	if tp, ok := ParentFromContext(ctx); ok {
		setIfAbsent(headers, HeaderTraceParent, tp)
	}
	if ts, ok := StateFromContext(ctx); ok {
		setIfAbsent(headers, HeaderTraceState, ts)
	}
}

func setIfAbsent(headers map[string]string, key, value string) {
	for k := range headers {
		if strings.EqualFold(k, key) {
			return
		}
	}
	headers[key] = value
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
