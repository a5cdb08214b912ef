//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Tomlord1122/todo-pics/internal/cache"
	"github.com/Tomlord1122/todo-pics/internal/config"
	"github.com/Tomlord1122/todo-pics/internal/domain"
)

func startRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("skipping integration test: could not start redis: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	endpoint, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)
	return config.RedisConfig{Addr: endpoint}
}

func TestTodoCache_ListRoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb, err := cache.NewRedisClient(ctx, startRedis(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	c := cache.NewTodoCache(rdb, time.Minute)

	got, err := c.GetList(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "miss returns nil")

	status := domain.StatusDoing
	list := []domain.Todo{
		{ID: 1, Title: "Buy milk", Status: &status, CreatedAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Title: "Walk dog", Completed: true},
	}
	version, err := c.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetList(ctx, version, list))

	got, err = c.GetList(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Buy milk", got[0].Title)
	assert.Equal(t, domain.StatusDoing, *got[0].Status)
	assert.True(t, got[1].Completed)

	require.NoError(t, c.Invalidate(ctx))
	got, err = c.GetList(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTodoCache_StaleListIsNotStored(t *testing.T) {
	ctx := context.Background()
	rdb, err := cache.NewRedisClient(ctx, startRedis(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	c := cache.NewTodoCache(rdb, time.Minute)

	// A reader takes the version, then a write invalidates before the
	// reader stores what it loaded.
	before, err := c.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))

	after, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	require.NoError(t, c.SetList(ctx, before, []domain.Todo{{ID: 1, Title: "stale"}}))
	got, err := c.GetList(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.SetList(ctx, after, []domain.Todo{{ID: 1, Title: "fresh"}}))
	got, err = c.GetList(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].Title)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := cache.NewRedisClient(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
