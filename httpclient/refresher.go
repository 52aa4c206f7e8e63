package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"

	"github.com/gaborage/finbricks/tokenstore"
)

// DefaultRefreshPath is appended to the base URL to reach the refresh endpoint
const DefaultRefreshPath = "/auth/refresh"

const maxRefreshBody = 1 << 20

type refreshRequestBody struct {
	RefreshToken string `json:"refreshToken"`
}

// EndpointRefresher calls POST <url> with {"refreshToken": ...} and expects
// {"accessToken": ..., "refreshToken": ...}. It talks to the transport
// directly, so the refresh call carries no bearer header and is never retried.
type EndpointRefresher struct {
	url  string
	http *nethttp.Client
}

// NewEndpointRefresher builds a refresher for the absolute endpoint url
func NewEndpointRefresher(url string, httpClient *nethttp.Client) *EndpointRefresher {
	if httpClient == nil {
		httpClient = nethttp.DefaultClient
	}
	return &EndpointRefresher{url: url, http: httpClient}
}

func (r *EndpointRefresher) Refresh(ctx context.Context, refreshToken string) (tokenstore.Credentials, error) {
	payload, err := json.Marshal(refreshRequestBody{RefreshToken: refreshToken})
	if err != nil {
		return tokenstore.Credentials{}, err
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return tokenstore.Credentials{}, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return tokenstore.Credentials{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRefreshBody))
	if err != nil {
		return tokenstore.Credentials{}, fmt.Errorf("failed to read refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tokenstore.Credentials{}, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	var creds tokenstore.Credentials
	if err := json.Unmarshal(body, &creds); err != nil {
		return tokenstore.Credentials{}, fmt.Errorf("malformed refresh response: %w", err)
	}
	return creds, nil
}
