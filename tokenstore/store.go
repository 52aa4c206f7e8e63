// Package tokenstore persists the access and refresh tokens the API client
// authenticates with. Every backend implements Store; the client only needs
// Get, Set and Remove on the two well-known keys.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
)

const (
	// AccessTokenKey names the short-lived bearer token
	AccessTokenKey = "access_token"
	// RefreshTokenKey names the long-lived token used to mint new access tokens
	RefreshTokenKey = "refresh_token"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("tokenstore: key not found")

// Store is durable key/value storage for credentials.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Credentials is the token pair held by a Store.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Load reads both tokens. Missing keys yield empty strings, not errors.
func Load(ctx context.Context, s Store) (Credentials, error) {
	access, err := get(ctx, s, AccessTokenKey)
	if err != nil {
		return Credentials{}, err
	}
	refresh, err := get(ctx, s, RefreshTokenKey)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// Save writes the non-empty tokens of creds.
func Save(ctx context.Context, s Store, creds Credentials) error {
	if creds.AccessToken != "" {
		if err := s.Set(ctx, AccessTokenKey, creds.AccessToken); err != nil {
			return fmt.Errorf("failed to store access token: %w", err)
		}
	}
	if creds.RefreshToken != "" {
		if err := s.Set(ctx, RefreshTokenKey, creds.RefreshToken); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
	}
	return nil
}

// Clear removes both tokens, attempting each even if one fails.
func Clear(ctx context.Context, s Store) error {
	return errors.Join(
		s.Remove(ctx, AccessTokenKey),
		s.Remove(ctx, RefreshTokenKey),
	)
}

func get(ctx context.Context, s Store, key string) (string, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}
