package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySubmissionGuard(t *testing.T) {
	ctx := context.Background()
	guard := NewMemorySubmissionGuard()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	guard.now = func() time.Time { return now }

	ok, err := guard.Claim(ctx, "checkout-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = guard.Claim(ctx, "checkout-1", time.Minute)
	assert.False(t, ok, "second claim inside ttl")

	now = now.Add(2 * time.Minute)
	ok, _ = guard.Claim(ctx, "checkout-1", time.Minute)
	assert.True(t, ok, "claim after expiry")

	require.NoError(t, guard.Release(ctx, "checkout-1"))
	ok, _ = guard.Claim(ctx, "checkout-1", time.Minute)
	assert.True(t, ok, "claim after release")
}
