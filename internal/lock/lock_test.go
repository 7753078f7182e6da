package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTryLock(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	token, ok, err := l.TryLock(ctx, "jobs:expiry", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "jobs:expiry", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	// A stale token must not release someone else's lock.
	require.NoError(t, l.Release(ctx, "jobs:expiry", "not-the-token"))
	_, ok, _ = l.TryLock(ctx, "jobs:expiry", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "jobs:expiry", token))
	_, ok, _ = l.TryLock(ctx, "jobs:expiry", time.Minute)
	assert.True(t, ok)
}

func TestLocalLockExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal()
	l.now = func() time.Time { return now }

	_, ok, _ := l.TryLock(ctx, "k", 10*time.Second)
	require.True(t, ok)

	now = now.Add(11 * time.Second)
	_, ok, _ = l.TryLock(ctx, "k", 10*time.Second)
	assert.True(t, ok)
}

func TestLocalRejectsInvalidArguments(t *testing.T) {
	l := NewLocal()
	_, _, err := l.TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrInvalidLock)
	_, _, err = l.TryLock(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrInvalidLock)
}
