package tracking

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestMeterProvider(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	ResetForTesting()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		ResetForTesting()
	})
	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != meterName {
			continue
		}
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum for %s", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordRequest(t *testing.T) {
	reader := setupTestMeterProvider(t)

	RecordRequest(context.Background(), http.MethodGet, OutcomeOK, 200, 20*time.Millisecond)
	RecordRequest(context.Background(), http.MethodGet, "TransientServer", 503, time.Second)

	metrics := collect(t, reader)
	require.Contains(t, metrics, metricRequests)
	assert.Equal(t, int64(2), sumOf(t, metrics[metricRequests]))

	hist, ok := metrics[metricRequestDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 2)

	sum := metrics[metricRequests].Data.(metricdata.Sum[int64])
	var outcomes []string
	for _, dp := range sum.DataPoints {
		v, found := dp.Attributes.Value(attribute.Key(attrOutcome))
		require.True(t, found)
		outcomes = append(outcomes, v.AsString())
	}
	assert.ElementsMatch(t, []string{OutcomeOK, "TransientServer"}, outcomes)
}

func TestRecordRetryRefreshQueued(t *testing.T) {
	reader := setupTestMeterProvider(t)
	ctx := context.Background()

	RecordRetry(ctx, http.MethodGet, 503)
	RecordRetry(ctx, http.MethodGet, 503)
	RecordRefresh(ctx, RefreshSuccess)
	RecordQueued(ctx)
	RecordQueued(ctx)
	RecordQueued(ctx)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, metrics[metricRetries]))
	assert.Equal(t, int64(1), sumOf(t, metrics[metricRefresh]))
	assert.Equal(t, int64(3), sumOf(t, metrics[metricRefreshQueued]))
}

func TestStartEndCall(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	_, span := StartCall(context.Background(), http.MethodGet, "https://api.test/reports")
	EndCall(span, "TransientServer", 503, 4, errors.New("service unavailable"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, int64(503), attrs[attrStatus].AsInt64())
	assert.Equal(t, int64(4), attrs[attrAttempts].AsInt64())
	assert.Equal(t, "https://api.test/reports", attrs[attrURL].AsString())
}
