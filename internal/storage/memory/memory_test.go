package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billbuddy/internal/storage"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Apply(ctx,
		storage.Set("b", "2"),
		storage.Set("a", "1"),
	))

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, s.Remove(ctx, "a"))
	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}
