package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/cpmm-sniper/internal/storage/storagetest"
)

func TestAttemptStore(t *testing.T) {
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	storagetest.Run(t, store)
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, storagetest.Attempt("a1", storagetest.MintA, 0, nil)))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, storagetest.MintA.String(), got.Mint)
}
