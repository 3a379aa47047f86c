package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_ConditionalInsert(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now()

	// Empty store: insert succeeds.
	n, err := store.ConditionalInsert(ctx, "job:42", base, base.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Unexpired record blocks a second insert.
	later := base.Add(100 * time.Millisecond)
	n, err = store.ConditionalInsert(ctx, "job:42", later, later.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	// The original record is untouched by the failed attempt.
	acquiredAt, ok := store.AcquiredAt("job:42")
	require.True(t, ok)
	assert.True(t, acquiredAt.Equal(base))
}

func TestInMemoryStore_ConditionalInsert_TakesOverExpired(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now()

	n, err := store.ConditionalInsert(ctx, "job:42", base, base.Add(-time.Second))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// A threshold at or past the record's timestamp means expired.
	later := base.Add(2 * time.Second)
	n, err = store.ConditionalInsert(ctx, "job:42", later, later.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	acquiredAt, ok := store.AcquiredAt("job:42")
	require.True(t, ok)
	assert.True(t, acquiredAt.Equal(later))
}

func TestInMemoryStore_ConditionalInsert_IndependentResources(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	n, err := store.ConditionalInsert(ctx, "a", now, now.Add(-time.Second))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = store.ConditionalInsert(ctx, "b", now, now.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInMemoryStore_Delete_MatchesTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now()

	_, err := store.ConditionalInsert(ctx, "job:42", base, base.Add(-time.Second))
	require.NoError(t, err)

	// A mismatched timestamp leaves the record in place.
	require.NoError(t, store.Delete(ctx, "job:42", base.Add(time.Millisecond)))
	_, ok := store.AcquiredAt("job:42")
	assert.True(t, ok)

	// The matching timestamp removes it.
	require.NoError(t, store.Delete(ctx, "job:42", base))
	_, ok = store.AcquiredAt("job:42")
	assert.False(t, ok)

	// Deleting a missing record is not an error.
	require.NoError(t, store.Delete(ctx, "job:42", base))
}

func TestInMemoryStore_DeleteAll(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_, err := store.ConditionalInsert(ctx, "job:42", now, now.Add(-time.Second))
	require.NoError(t, err)

	require.NoError(t, store.DeleteAll(ctx, "job:42"))
	_, ok := store.AcquiredAt("job:42")
	assert.False(t, ok)

	// Idempotent on a missing resource.
	require.NoError(t, store.DeleteAll(ctx, "job:42"))
}

func TestInMemoryStore_RespectsContext(t *testing.T) {
	store := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	now := time.Now()
	_, err := store.ConditionalInsert(ctx, "job:42", now, now)
	assert.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, store.Delete(ctx, "job:42", now), context.Canceled)
	assert.ErrorIs(t, store.DeleteAll(ctx, "job:42"), context.Canceled)
}
