package httpclient

import (
	nethttp "net/http"
	"strconv"

	"github.com/gaborage/finbricks/logger"
)

// logRequest logs the outgoing attempt at debug level. Headers go through
// the logger's sensitive-data filter, so bearer tokens are masked.
func (c *APIClient) logRequest(req *nethttp.Request, body []byte, traceID string) {
	ev := c.logger.WithContext(req.Context()).Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", traceID)

	if len(req.Header) > 0 {
		ev = ev.Int("header_count", len(req.Header))
	}
	if len(body) > 0 {
		ev = ev.Int("body_size", len(body))
	}
	if c.config.LogPayloads {
		ev = c.withPayload(ev, req.Header, body)
	}
	ev.Msg("API client request")
}

func (c *APIClient) logResponse(resp *Response, req *nethttp.Request, traceID string) {
	ev := c.logger.WithContext(req.Context()).Debug().
		Str("direction", "inbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", traceID).
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime)

	if len(resp.Body) > 0 {
		ev = ev.Int("body_size", len(resp.Body))
	}
	if c.config.LogPayloads {
		ev = c.withPayload(ev, resp.Headers, resp.Body)
	}
	ev.Msg("API client response")
}

func (c *APIClient) withPayload(ev logger.LogEvent, header nethttp.Header, body []byte) logger.LogEvent {
	if len(header) > 0 {
		ev = ev.Interface("headers", header)
	}
	if len(body) == 0 {
		return ev
	}
	limit := c.config.MaxPayloadLogBytes
	truncated := limit > 0 && len(body) > limit
	preview := body
	if truncated {
		preview = body[:limit]
	}
	return ev.
		Str("body_truncated", strconv.FormatBool(truncated)).
		Bytes("body_preview", preview)
}
