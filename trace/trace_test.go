package trace

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContext(t *testing.T) {
	_, ok := IDFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithTraceID(context.Background(), "req-1")
	id, ok := IDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestEnsureTraceIDGeneratesUUID(t *testing.T) {
	id := EnsureTraceID(context.Background())
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	ctx := WithTraceID(context.Background(), "fixed")
	assert.Equal(t, "fixed", EnsureTraceID(ctx))
}

func TestEnsureIsStable(t *testing.T) {
	ctx, first := Ensure(context.Background())
	_, second := Ensure(ctx)
	assert.Equal(t, first, second)
}
