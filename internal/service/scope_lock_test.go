package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"facilityops/lottery/internal/repository"
)

func TestScopeLock_ExclusiveAndReleased(t *testing.T) {
	store := repository.NewMemoryStateStore()
	ctx := t.Context()

	lock, err := acquireScopeLock(ctx, store, testScope, "u-1", time.Minute, zap.NewNop())
	require.NoError(t, err)

	_, err = acquireScopeLock(ctx, store, testScope, "u-2", time.Minute, zap.NewNop())
	assert.ErrorIs(t, err, ErrScopeBusy)

	lock.Release()
	again, err := acquireScopeLock(ctx, store, testScope, "u-2", time.Minute, zap.NewNop())
	require.NoError(t, err)
	again.Release()
}

func TestScopeLock_DoesNotTouchAnotherHoldersLock(t *testing.T) {
	store := repository.NewMemoryStateStore()
	ctx := t.Context()

	lock, err := acquireScopeLock(ctx, store, testScope, "u-1", 40*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	// Another process takes the key over, as after an expiry.
	other := []byte("u-2/other")
	require.NoError(t, store.Set(ctx, lock.key, other, time.Minute))

	select {
	case <-lock.done:
	case <-time.After(2 * time.Second):
		t.Fatal("keepalive kept running after the lock was lost")
	}
	got, err := store.Get(ctx, lock.key)
	require.NoError(t, err)
	assert.Equal(t, other, got, "keepalive must not overwrite the new holder")

	lock.Release()
	got, err = store.Get(ctx, lock.key)
	require.NoError(t, err)
	assert.Equal(t, other, got, "release must not delete the new holder's lock")
}
