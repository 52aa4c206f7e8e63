// Package tracking records OpenTelemetry metrics and spans for the API client.
// Instruments are created lazily from the global meter provider.
package tracking

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	meterName  = "finbricks/httpclient"
	tracerName = "finbricks/httpclient"

	metricRequests        = "finbricks.http.client.requests"
	metricRequestDuration = "finbricks.http.client.duration"
	metricRetries         = "finbricks.http.client.retries"
	metricRefresh         = "finbricks.auth.refresh"
	metricRefreshQueued   = "finbricks.auth.refresh.queued"

	attrMethod   = "http.request.method"
	attrStatus   = "http.response.status_code"
	attrOutcome  = "finbricks.outcome"
	attrAttempts = "finbricks.attempts"
	attrURL      = "url.full"

	spanNamePrefix = "HTTP "
)

// Refresh outcomes
const (
	RefreshSuccess   = "success"
	RefreshFailure   = "failure"
	RefreshNoToken   = "no_refresh_token"
	RefreshDiscarded = "discarded"
)

// OutcomeOK marks a call that returned a response to the caller
const OutcomeOK = "ok"

var (
	meterInitMu sync.Mutex
	meterOnce   sync.Once
	meter       metric.Meter

	requestCounter    metric.Int64Counter
	requestDuration   metric.Float64Histogram
	retryCounter      metric.Int64Counter
	refreshCounter    metric.Int64Counter
	refreshQueueCount metric.Int64Counter
)

func logMetricError(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize http client metric %s: %v\n", name, err)
	}
}

func initMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if meter != nil {
		return
	}
	meter = otel.Meter(meterName)

	var err error
	requestCounter, err = meter.Int64Counter(metricRequests,
		metric.WithDescription("Logical API calls by final outcome"),
		metric.WithUnit("{request}"))
	logMetricError(metricRequests, err)

	requestDuration, err = meter.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Duration of logical API calls including retries and refresh"),
		metric.WithUnit("s"))
	logMetricError(metricRequestDuration, err)

	retryCounter, err = meter.Int64Counter(metricRetries,
		metric.WithDescription("Transient-status retries scheduled"),
		metric.WithUnit("{retry}"))
	logMetricError(metricRetries, err)

	refreshCounter, err = meter.Int64Counter(metricRefresh,
		metric.WithDescription("Token refresh attempts by outcome"),
		metric.WithUnit("{refresh}"))
	logMetricError(metricRefresh, err)

	refreshQueueCount, err = meter.Int64Counter(metricRefreshQueued,
		metric.WithDescription("Requests parked while a refresh was in flight"),
		metric.WithUnit("{request}"))
	logMetricError(metricRefreshQueued, err)
}

func ensureMeter() { meterOnce.Do(initMeter) }

// RecordRequest records the final outcome of one logical call. outcome is
// OutcomeOK or an error category name.
func RecordRequest(ctx context.Context, method, outcome string, status int, elapsed time.Duration) {
	ensureMeter()
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrOutcome, outcome),
		attribute.Int(attrStatus, status),
	)
	if requestCounter != nil {
		requestCounter.Add(ctx, 1, attrs)
	}
	if requestDuration != nil {
		requestDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

// RecordRetry counts a scheduled transient retry
func RecordRetry(ctx context.Context, method string, status int) {
	ensureMeter()
	if retryCounter != nil {
		retryCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrMethod, method),
			attribute.Int(attrStatus, status),
		))
	}
}

// RecordRefresh counts one refresh call by outcome
func RecordRefresh(ctx context.Context, outcome string) {
	ensureMeter()
	if refreshCounter != nil {
		refreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
	}
}

// RecordQueued counts a request parked behind an in-flight refresh
func RecordQueued(ctx context.Context) {
	ensureMeter()
	if refreshQueueCount != nil {
		refreshQueueCount.Add(ctx, 1)
	}
}

// StartCall opens the client span covering a logical call and every attempt in it.
func StartCall(ctx context.Context, method, url string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanNamePrefix+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrMethod, method),
			attribute.String(attrURL, url),
		))
}

// EndCall closes span with the final status and outcome.
func EndCall(span trace.Span, outcome string, status, attempts int, err error) {
	span.SetAttributes(
		attribute.String(attrOutcome, outcome),
		attribute.Int(attrAttempts, attempts),
	)
	if status != 0 {
		span.SetAttributes(attribute.Int(attrStatus, status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
}

// ResetForTesting drops the cached instruments so a test meter provider takes effect.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	meter = nil
	requestCounter = nil
	requestDuration = nil
	retryCounter = nil
	refreshCounter = nil
	refreshQueueCount = nil
	meterOnce = sync.Once{}
}
