package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_MarkSubmitted(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	t.Run("first submission is fresh", func(t *testing.T) {
		fresh, err := store.MarkSubmitted(ctx, "pay-001", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("duplicate submission is rejected", func(t *testing.T) {
		fresh, err := store.MarkSubmitted(ctx, "pay-001", time.Hour)
		require.NoError(t, err)
		assert.False(t, fresh)
	})

	t.Run("different payment ID is independent", func(t *testing.T) {
		fresh, err := store.MarkSubmitted(ctx, "pay-002", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)
	})
}

func TestInMemoryIdempotencyStore_IsSubmitted(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	submitted, err := store.IsSubmitted(ctx, "pay-001")
	require.NoError(t, err)
	assert.False(t, submitted)

	_, err = store.MarkSubmitted(ctx, "pay-001", time.Hour)
	require.NoError(t, err)

	submitted, err = store.IsSubmitted(ctx, "pay-001")
	require.NoError(t, err)
	assert.True(t, submitted)
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	fresh, err := store.MarkSubmitted(ctx, "pay-001", time.Hour)
	require.NoError(t, err)
	require.True(t, fresh)

	require.NoError(t, store.Release(ctx, "pay-001"))

	fresh, err = store.MarkSubmitted(ctx, "pay-001", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)

	t.Run("releasing an unknown ID is a no-op", func(t *testing.T) {
		assert.NoError(t, store.Release(ctx, "pay-unknown"))
	})
}

func TestInMemoryIdempotencyStore_Expiration(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	_, err := store.MarkSubmitted(ctx, "pay-001", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	submitted, err := store.IsSubmitted(ctx, "pay-001")
	require.NoError(t, err)
	assert.False(t, submitted, "expired entry should read as not submitted")

	// An expired entry can be re-marked
	fresh, err := store.MarkSubmitted(ctx, "pay-001", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestInMemoryIdempotencyStore_Concurrent(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	freshCount := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh, err := store.MarkSubmitted(ctx, "pay-race", time.Hour)
			assert.NoError(t, err)
			if fresh {
				mu.Lock()
				freshCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, freshCount, "exactly one submission should win")
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	_, err := store.MarkSubmitted(ctx, "pay-expired", 1*time.Millisecond)
	require.NoError(t, err)
	_, err = store.MarkSubmitted(ctx, "pay-live", time.Hour)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
