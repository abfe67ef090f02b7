package checkpoint

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "cursor:serverA", Key("serverA"))
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "serverA")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "serverA", "100"))

	cursor, err := store.Get(ctx, "serverA")
	require.NoError(t, err)
	assert.Equal(t, "100", cursor)

	// Overwrite supersedes the previous value
	require.NoError(t, store.Put(ctx, "serverA", "150"))
	cursor, err = store.Get(ctx, "serverA")
	require.NoError(t, err)
	assert.Equal(t, "150", cursor)
}

func TestMemoryStoreServersAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "serverA", "100"))
	require.NoError(t, store.Put(ctx, "serverB", "200"))

	a, err := store.Get(ctx, "serverA")
	require.NoError(t, err)
	b, err := store.Get(ctx, "serverB")
	require.NoError(t, err)

	assert.Equal(t, "100", a)
	assert.Equal(t, "200", b)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Put(ctx, "serverA", "100")
			_, _ = store.Get(ctx, "serverA")
		}()
	}
	wg.Wait()

	cursor, err := store.Get(ctx, "serverA")
	require.NoError(t, err)
	assert.Equal(t, "100", cursor)
}
