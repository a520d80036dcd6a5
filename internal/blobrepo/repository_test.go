package blobrepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/keeperd/pkg/storage"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	r := New(s, "approvals/store", "approvals")

	_, ok, err := r.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "blob"))
	got, ok, err := r.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "blob", got)

	require.NoError(t, r.Clear(ctx))
	require.NoError(t, r.Clear(ctx))
	_, ok, err = r.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
