package httpclient

import (
	"bytes"
	"context"
	nethttp "net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/finbricks/logger"
)

const (
	testAPIClientRequest  = "API client request"
	testAPIClientResponse = "API client response"
)

func newLoggingClient(log logger.Logger, payloads bool, maxBytes int) *APIClient {
	return &APIClient{
		logger: log,
		config: &Config{LogPayloads: payloads, MaxPayloadLogBytes: maxBytes},
	}
}

func TestClientLogRequest(t *testing.T) {
	t.Run("summary without payloads", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := newLoggingClient(fakeLog, false, 1024)

		req, err := nethttp.NewRequestWithContext(context.Background(), nethttp.MethodPost, testBaseURL+"/goals", nethttp.NoBody)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer T1")
		req.Header.Set("Content-Type", "application/json")

		body := []byte(`{"name":"Holiday"}`)
		c.logRequest(req, body, "trace-123")

		events := fakeLog.byMessage(testAPIClientRequest)
		require.Len(t, events, 1)
		ev := events[0]
		assert.Equal(t, "debug", ev.level)
		assert.Equal(t, "outbound", ev.fields["direction"])
		assert.Equal(t, nethttp.MethodPost, ev.fields["method"])
		assert.Equal(t, testBaseURL+"/goals", ev.fields["url"])
		assert.Equal(t, "trace-123", ev.fields["request_id"])
		assert.Equal(t, 2, ev.fields["header_count"])
		assert.Equal(t, len(body), ev.fields["body_size"])
		assert.NotContains(t, ev.fields, "headers")
	})

	t.Run("payload preview is truncated", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := newLoggingClient(fakeLog, true, 8)

		req, err := nethttp.NewRequestWithContext(context.Background(), nethttp.MethodPut, testBaseURL+"/budgets/1", nethttp.NoBody)
		require.NoError(t, err)

		body := []byte(`{"limit":1500,"category":"food"}`)
		c.logRequest(req, body, "trace-456")

		ev := fakeLog.byMessage(testAPIClientRequest)[0]
		assert.Equal(t, "true", ev.fields["body_truncated"])
		assert.Equal(t, body[:8], ev.fields["body_preview"])
		_, hasHeaderCount := ev.fields["header_count"]
		assert.False(t, hasHeaderCount)
	})
}

func TestClientLogResponse(t *testing.T) {
	fakeLog := &fakeLogger{}
	c := newLoggingClient(fakeLog, true, 1024)

	req, err := nethttp.NewRequestWithContext(context.Background(), nethttp.MethodGet, testBaseURL+"/reports", nethttp.NoBody)
	require.NoError(t, err)
	resp := &Response{
		StatusCode: nethttp.StatusOK,
		Body:       []byte(reportsPayload),
		Headers:    nethttp.Header{"Content-Type": []string{"application/json"}},
		Stats:      Stats{ElapsedTime: 15 * time.Millisecond},
	}

	c.logResponse(resp, req, "trace-789")

	ev := fakeLog.byMessage(testAPIClientResponse)[0]
	assert.Equal(t, "inbound", ev.fields["direction"])
	assert.Equal(t, nethttp.StatusOK, ev.fields["status"])
	assert.Equal(t, 15*time.Millisecond, ev.fields["elapsed"])
	assert.Equal(t, "false", ev.fields["body_truncated"])
	assert.NotNil(t, ev.fields["headers"])
}

func TestBearerTokenIsMaskedInPayloadLogs(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewWithWriter(buf, "debug", false, logger.DefaultFilterConfig())
	h := newHarness(t, always(nethttp.StatusOK), defaultCreds(), func(b *Builder) {
		b.logger = log
		b.WithPayloadLogging(true, 0)
	})

	_, err := h.client.Get(context.Background(), &Request{URL: "/budgets"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, testAPIClientRequest)
	assert.Contains(t, out, logger.DefaultMaskValue)
	assert.NotContains(t, out, "Bearer T1")
}

func TestRetryIsLoggedAtWarn(t *testing.T) {
	fakeLog := &fakeLogger{}
	h := newHarness(t, statusSequence(503), defaultCreds(), func(b *Builder) { b.logger = fakeLog })

	_, err := h.client.Get(context.Background(), &Request{URL: "/reports"})
	require.NoError(t, err)

	events := fakeLog.byMessage("Transient server error, retrying")
	require.Len(t, events, 1)
	assert.Equal(t, "warn", events[0].level)
	assert.Equal(t, 1, events[0].fields["retry"])
	assert.Equal(t, time.Second, events[0].fields["delay"])
}
