package tokenstore

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringStore keeps tokens in the operating system credential store
// (macOS Keychain, Secret Service, Windows Credential Manager).
type KeyringStore struct {
	service string
}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore stores entries under the given keyring service name
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

// Available reports whether the system keyring accepts writes.
func (s *KeyringStore) Available() bool {
	const probe = "finbricks::probe"
	if err := keyring.Set(s.service, probe, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(s.service, probe)
	return true
}

func (s *KeyringStore) Get(_ context.Context, key string) (string, error) {
	v, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *KeyringStore) Set(_ context.Context, key, value string) error {
	return keyring.Set(s.service, key, value)
}

func (s *KeyringStore) Remove(_ context.Context, key string) error {
	err := keyring.Delete(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
