package job

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_Enqueue(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	j, err := store.Enqueue(ctx, &Job{
		Resource: "reports",
		Payload:  json.RawMessage(`{"report":"daily"}`),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, j.ID)
	assert.Equal(t, StatusPending, j.Status)
	assert.False(t, j.CreatedAt.IsZero())
}

func TestInMemoryStore_Enqueue_Invalid(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Enqueue(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidJob)

	_, err = store.Enqueue(ctx, &Job{})
	assert.ErrorIs(t, err, ErrInvalidJob)
}

func TestInMemoryStore_NextPending_ClaimsOldestFirst(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	first, err := store.Enqueue(ctx, &Job{Resource: "reports"})
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, &Job{Resource: "exports"})
	require.NoError(t, err)

	claimed, err := store.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	assert.Equal(t, first.ID, claimed.ID)
	assert.Equal(t, StatusRunning, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)
}

func TestInMemoryStore_NextPending_EmptyQueue(t *testing.T) {
	store := NewInMemoryStore()

	claimed, err := store.NextPending(context.Background())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestInMemoryStore_NextPending_SkipsClaimed(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Enqueue(ctx, &Job{Resource: "reports"})
	require.NoError(t, err)

	first, err := store.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := store.NextPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, second, "a running job must not be claimed again")
}

func TestInMemoryStore_Complete(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Enqueue(ctx, &Job{Resource: "reports"})
	require.NoError(t, err)
	claimed, err := store.NextPending(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Complete(ctx, claimed.ID))

	got, err := store.GetByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestInMemoryStore_Fail(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Enqueue(ctx, &Job{Resource: "reports"})
	require.NoError(t, err)
	claimed, err := store.NextPending(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Fail(ctx, claimed.ID, "handler blew up"))

	got, err := store.GetByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "handler blew up", got.LastError)
}

func TestInMemoryStore_Requeue(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Enqueue(ctx, &Job{Resource: "reports"})
	require.NoError(t, err)
	claimed, err := store.NextPending(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Requeue(ctx, claimed.ID))

	// The job is claimable again, with the attempt counted.
	reclaimed, err := store.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, claimed.ID, reclaimed.ID)
	assert.Equal(t, 2, reclaimed.Attempts)
}

func TestInMemoryStore_Transition_WrongState(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	j, err := store.Enqueue(ctx, &Job{Resource: "reports"})
	require.NoError(t, err)

	// Completing a job that was never claimed fails.
	assert.ErrorIs(t, store.Complete(ctx, j.ID), ErrJobNotFound)
	assert.ErrorIs(t, store.Complete(ctx, "missing"), ErrJobNotFound)
}

func TestInMemoryStore_GetByID_NotFound(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
