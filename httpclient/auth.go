package httpclient

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/gaborage/finbricks/logger"
	"github.com/gaborage/finbricks/tokenstore"
)

const headerAuthorization = "Authorization"

// applyBearer attaches token; an empty token leaves the request untouched.
func applyBearer(req *nethttp.Request, token string) {
	if token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+token)
	}
}

// currentAccessToken reads the stored access token. Store failures are
// logged and treated as "no token" so the request still goes out.
func currentAccessToken(ctx context.Context, store tokenstore.Store, log logger.Logger) string {
	token, err := store.Get(ctx, tokenstore.AccessTokenKey)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			log.Warn().Err(err).Msg("Failed to read access token")
		}
		return ""
	}
	return token
}

// NewAuthInterceptor attaches the stored access token as a bearer header.
// The API client does this itself; the interceptor serves plain
// *http.Client users that share the same token store.
func NewAuthInterceptor(store tokenstore.Store, log logger.Logger) RequestInterceptor {
	if log == nil {
		log = logger.Nop()
	}
	return func(ctx context.Context, req *nethttp.Request) error {
		applyBearer(req, currentAccessToken(ctx, store, log))
		return nil
	}
}
