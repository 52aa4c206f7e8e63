// Package session owns the signed-in state of the user: storing credentials
// on login and clearing them, plus any dependent state, on logout.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gaborage/finbricks/logger"
	"github.com/gaborage/finbricks/tokenstore"
)

const logoutTimeout = 5 * time.Second

// ErrMissingAccessToken is returned by Login when no access token is given.
var ErrMissingAccessToken = errors.New("session: access token is required")

// Manager implements the session controller used by the API client.
type Manager struct {
	store tokenstore.Store
	log   logger.Logger

	mu    sync.Mutex
	hooks []func()
}

// NewManager creates a Manager over store
func NewManager(store tokenstore.Store, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{store: store, log: log.WithFields(map[string]any{"component": "session"})}
}

// OnLogout registers fn to run after every logout, in registration order.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Login stores the token pair returned by the backend's sign-in endpoint.
// Any previous refresh token is replaced or removed.
func (m *Manager) Login(ctx context.Context, creds tokenstore.Credentials) error {
	if creds.AccessToken == "" {
		return ErrMissingAccessToken
	}
	if err := tokenstore.Save(ctx, m.store, creds); err != nil {
		return err
	}
	if creds.RefreshToken == "" {
		if err := m.store.Remove(ctx, tokenstore.RefreshTokenKey); err != nil {
			return err
		}
	}
	m.log.Info().Bool("has_refresh", creds.RefreshToken != "").Msg("Signed in")
	return nil
}

// Logout clears stored credentials and runs the logout hooks. Failures are
// logged; the hooks run regardless.
func (m *Manager) Logout() {
	ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
	defer cancel()
	if err := m.LogoutContext(ctx); err != nil {
		m.log.Error().Err(err).Msg("Failed to clear credentials on logout")
	}
}

// LogoutContext is Logout with a caller-controlled deadline; it returns the
// token store error, if any.
func (m *Manager) LogoutContext(ctx context.Context) error {
	err := tokenstore.Clear(ctx, m.store)

	m.mu.Lock()
	hooks := append([]func(){}, m.hooks...)
	m.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}

	m.log.Info().Msg("Signed out")
	return err
}

// IsAuthenticated reports whether any credential is stored.
func (m *Manager) IsAuthenticated(ctx context.Context) (bool, error) {
	creds, err := tokenstore.Load(ctx, m.store)
	if err != nil {
		return false, err
	}
	return creds.AccessToken != "" || creds.RefreshToken != "", nil
}
