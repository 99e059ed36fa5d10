package gateway

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter()

	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(ctx, "member:/v1/me", 10)
		require.NoError(t, err)
		require.True(t, allowed, "call %d", i+1)
	}

	allowed, _ := limiter.Allow(ctx, "member:/v1/me", 10)
	assert.False(t, allowed)

	allowed, _ = limiter.Allow(ctx, "other:/v1/me", 10)
	assert.True(t, allowed)

	allowed, _ = limiter.Allow(ctx, "member:/v1/me", 0)
	assert.True(t, allowed, "a zero budget disables limiting")
}

func TestRedisLimiter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	limiter, err := NewRedisLimiter(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	defer limiter.Close()

	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "member:/v1/loans", 3)
		require.NoError(t, err)
		require.True(t, allowed, "call %d", i+1)
	}

	allowed, err := limiter.Allow(ctx, "member:/v1/loans", 3)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "other:/v1/loans", 3)
	require.NoError(t, err)
	assert.True(t, allowed)

	// A new window starts a fresh count
	now = now.Add(time.Minute)
	allowed, err = limiter.Allow(ctx, "member:/v1/loans", 3)
	require.NoError(t, err)
	assert.True(t, allowed)
}
