package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", DefaultFileName))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFileName)

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, Save(ctx, first, Credentials{AccessToken: "T1", RefreshToken: "R1"}))

	second, err := NewFileStore(path)
	require.NoError(t, err)
	creds, err := Load(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "R1", creds.RefreshToken)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	s, err := NewFileStore(path)
	require.NoError(t, err)

	keys := []string{"a", "b", "c", "d", "e", "f"}
	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			assert.NoError(t, s.Set(ctx, key, "v-"+key))
		}(k)
	}
	wg.Wait()

	for _, k := range keys {
		v, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, "v-"+k, v)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = s.Get(context.Background(), AccessTokenKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "corrupt")
}
