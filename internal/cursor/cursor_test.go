package cursor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"evmswaps/internal/model"
)

// exerciseStore checks the behavior every Store backend shares.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "base-swaps")
	require.NoError(t, err)
	require.False(t, ok)

	// a run starting after block 99 writes its first batch ending at 100
	start := model.Position{Number: 99}
	require.NoError(t, store.Save(ctx, "base-swaps", model.Position{Number: 100, Hash: "0x64"}, start))
	cp, ok, err := store.Get(ctx, "base-swaps")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, cp.Fresh())
	require.Equal(t, start, cp.Initial)
	require.Equal(t, model.Position{Number: 100, Hash: "0x64"}, cp.Current)

	// later saves never move the initial position
	require.NoError(t, store.Save(ctx, "base-swaps", model.Position{Number: 150, Hash: "0x96"}, model.Position{Number: 140}))
	cp, ok, err = store.Get(ctx, "base-swaps")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, start, cp.Initial)
	require.Equal(t, model.Position{Number: 150, Hash: "0x96"}, cp.Current)

	_, ok, err = store.Get(ctx, "ethereum-swaps")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cursor.json")
	exerciseStore(t, NewFileStore(path))

	reopened := NewFileStore(path)
	cp, ok, err := reopened.Get(context.Background(), "base-swaps")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(150), cp.Current.Number)
}

func TestFileStoreRejectsDirectory(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, _, err := store.Get(context.Background(), "base-swaps")
	require.Error(t, err)
}

func TestResolveDefaults(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "cursor.json"))
	def := model.Position{Number: 99}

	cp, err := Resolve(context.Background(), store, "base-swaps", def)
	require.NoError(t, err)
	require.Equal(t, def, cp.Current)
	require.Equal(t, def, cp.Initial)
	require.True(t, cp.Fresh())

	require.NoError(t, store.Save(context.Background(), "base-swaps", model.Position{Number: 150}, cp.Initial))
	cp, err = Resolve(context.Background(), store, "base-swaps", def)
	require.NoError(t, err)
	require.Equal(t, uint64(150), cp.Current.Number)
	require.Equal(t, def, cp.Initial)
	require.False(t, cp.Fresh())
}
