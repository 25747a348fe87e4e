package kv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/kv"
)

func TestMemoryKVPutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKV[string, int]()

	_, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Put(ctx, "a", 1))
	v, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, v)

	require.NoError(t, store.Delete(ctx, "a"))
	_, found, err = store.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryKVBatchIsAllOrNothingPerCall(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKV[string, int]()
	require.NoError(t, store.Put(ctx, "existing", 5))

	err := store.Batch(ctx, []kv.BatchWrite[string, int]{
		{Op: kv.BatchPut, Key: "a", Value: 1},
		{Op: kv.BatchPut, Key: "b", Value: 2},
		{Op: kv.BatchDelete, Key: "existing"},
	})
	require.NoError(t, err)

	a, found, _ := store.Get(ctx, "a")
	require.True(t, found)
	require.Equal(t, 1, a)

	_, found, _ = store.Get(ctx, "existing")
	require.False(t, found)
}

func TestMemoryKVRangeReturnsAllEntries(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKV[string, int]()
	require.NoError(t, store.Put(ctx, "a", 1))
	require.NoError(t, store.Put(ctx, "b", 2))

	entries, err := store.Range(ctx, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
