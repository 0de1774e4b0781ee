// Package testing provides in-memory OpenTelemetry providers and assertions
// for the HTTP client's spans and metrics.
//
// Usage:
//
//	tp := obtest.NewTestTraceProvider()
//	mp := obtest.NewTestMeterProvider()
//	client := http.NewBuilder(log).WithTelemetry(tp, mp).Build()
//
//	// exercise the client
//
//	obtest.NewSpanCollector(t, tp.Exporter).WithName("HTTP GET").AssertCount(2)
//	assert.Equal(t, int64(2), obtest.SumValue(t, mp.Collect(t), "http.client.attempts"))
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const metricNotFoundErrMsg = "metric %s not found"

// TestTraceProvider wraps the SDK TracerProvider and in-memory exporter for testing.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider creates a TracerProvider that exports synchronously to memory.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	return &TestTraceProvider{
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)),
		Exporter:       exporter,
	}
}

// TestMeterProvider wraps the SDK MeterProvider and manual reader for testing.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider creates a MeterProvider read on demand through Collect.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	return &TestMeterProvider{
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		Reader:        reader,
	}
}

// Collect reads all metrics recorded so far.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, tmp.Reader.Collect(context.Background(), &rm), "failed to collect metrics")
	return rm
}

// SpanCollector provides a fluent API for filtering and asserting on captured spans.
type SpanCollector struct {
	t     *testing.T
	spans tracetest.SpanStubs
}

// NewSpanCollector snapshots the spans held by exporter.
func NewSpanCollector(t *testing.T, exporter *tracetest.InMemoryExporter) *SpanCollector {
	t.Helper()
	return &SpanCollector{t: t, spans: exporter.GetSpans()}
}

// Len returns the number of collected spans.
func (sc *SpanCollector) Len() int {
	return len(sc.spans)
}

// Get returns the span at index.
func (sc *SpanCollector) Get(index int) tracetest.SpanStub {
	sc.t.Helper()
	require.Less(sc.t, index, len(sc.spans), "span index out of bounds")
	return sc.spans[index]
}

// WithName keeps the spans called name.
func (sc *SpanCollector) WithName(name string) *SpanCollector {
	return sc.filter(func(s *tracetest.SpanStub) bool { return s.Name == name })
}

// WithAttribute keeps the spans carrying key=value.
func (sc *SpanCollector) WithAttribute(key string, value any) *SpanCollector {
	return sc.filter(func(s *tracetest.SpanStub) bool {
		for _, attr := range s.Attributes {
			if attr.Key == attribute.Key(key) && matchesValue(attr.Value, value) {
				return true
			}
		}
		return false
	})
}

// WithStatus keeps the spans whose status code is code.
func (sc *SpanCollector) WithStatus(code codes.Code) *SpanCollector {
	return sc.filter(func(s *tracetest.SpanStub) bool { return s.Status.Code == code })
}

func (sc *SpanCollector) filter(keep func(*tracetest.SpanStub) bool) *SpanCollector {
	filtered := make(tracetest.SpanStubs, 0, len(sc.spans))
	for i := range sc.spans {
		if keep(&sc.spans[i]) {
			filtered = append(filtered, sc.spans[i])
		}
	}
	return &SpanCollector{t: sc.t, spans: filtered}
}

// AssertCount asserts the number of collected spans.
func (sc *SpanCollector) AssertCount(expected int) *SpanCollector {
	sc.t.Helper()
	assert.Len(sc.t, sc.spans, expected, "unexpected number of spans")
	return sc
}

func matchesValue(attrValue attribute.Value, expected any) bool {
	switch v := expected.(type) {
	case string:
		return attrValue.AsString() == v
	case int:
		return attrValue.AsInt64() == int64(v)
	case int64:
		return attrValue.AsInt64() == v
	case bool:
		return attrValue.AsBool() == v
	default:
		return false
	}
}

// AssertSpanAttribute asserts that span carries key=expected.
func AssertSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string, expected any) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			assert.True(t, matchesValue(attr.Value, expected), "attribute %s: got %v, want %v", key, attr.Value.Emit(), expected)
			return
		}
	}
	t.Errorf("attribute %s not found in span", key)
}

// AssertNoSpanAttribute asserts that span does not carry key.
func AssertNoSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string) {
	t.Helper()
	for _, attr := range span.Attributes {
		assert.NotEqual(t, key, string(attr.Key), "unexpected attribute %s", key)
	}
}

// AssertSpanError asserts an error status, and its description when expectedDesc is set.
func AssertSpanError(t *testing.T, span *tracetest.SpanStub, expectedDesc string) {
	t.Helper()
	assert.Equal(t, codes.Error, span.Status.Code, "expected error status")
	if expectedDesc != "" {
		assert.Equal(t, expectedDesc, span.Status.Description, "span error description mismatch")
	}
}

// FindMetric finds a metric by name. Returns nil if not found.
func FindMetric(rm metricdata.ResourceMetrics, metricName string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == metricName {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// SumValue adds up every data point of an int64 Sum metric.
func SumValue(t *testing.T, rm metricdata.ResourceMetrics, metricName string) int64 {
	t.Helper()
	m := FindMetric(rm, metricName)
	require.NotNil(t, m, metricNotFoundErrMsg, metricName)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not a Sum[int64]", metricName)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

// SumByAttribute adds up an int64 Sum metric grouped by the string value of key.
func SumByAttribute(t *testing.T, rm metricdata.ResourceMetrics, metricName, key string) map[string]int64 {
	t.Helper()
	m := FindMetric(rm, metricName)
	require.NotNil(t, m, metricNotFoundErrMsg, metricName)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not a Sum[int64]", metricName)

	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.Emit()] += dp.Value
	}
	return out
}

// HistogramCount adds up the counts of every data point of a float64 Histogram metric.
func HistogramCount(t *testing.T, rm metricdata.ResourceMetrics, metricName string) uint64 {
	t.Helper()
	m := FindMetric(rm, metricName)
	require.NotNil(t, m, metricNotFoundErrMsg, metricName)

	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "metric %s is not a Histogram[float64]", metricName)

	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	return total
}
