package redis_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	redisadapter "github.com/robertarktes/afterschool-bookings/internal/adapters/redis"
	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setupRedis(t *testing.T) *goredis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCache_Lessons(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	cache := redisadapter.NewCache(client, time.Minute)

	_, ok, err := cache.Lessons(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	lessons := []domain.Lesson{
		{ID: primitive.NewObjectID(), Subject: "Math", Price: 100, Spaces: 3, Extra: bson.M{"icon": "fa-calculator"}},
	}
	gen, err := cache.Generation(ctx)
	require.NoError(t, err)
	stored, err := cache.SetLessons(ctx, gen, lessons)
	require.NoError(t, err)
	require.True(t, stored)

	got, ok, err := cache.Lessons(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, lessons, got)

	require.NoError(t, cache.Invalidate(ctx))
	_, ok, err = cache.Lessons(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_StaleGenerationIsNotStored(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	cache := redisadapter.NewCache(client, time.Minute)

	before, err := cache.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))
	after, err := cache.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	stale := []domain.Lesson{{ID: primitive.NewObjectID(), Subject: "Math", Spaces: 5}}
	stored, err := cache.SetLessons(ctx, before, stale)
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok, err := cache.Lessons(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err = cache.SetLessons(ctx, after, stale)
	require.NoError(t, err)
	assert.True(t, stored)
	ttl, err := client.PTTL(ctx, "lessons:all").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestIdempotency_ReserveSaveRelease(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	store := redisadapter.NewIdempotency(client)

	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	reserved, err := store.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)

	reserved, err = store.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, reserved)

	got, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, got.Pending)

	require.NoError(t, store.Save(ctx, "k1", redisadapter.IdempResponse{Status: 201, Result: []byte(`{"a":1}`)}, time.Hour))
	got, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, got.Pending)
	assert.Equal(t, 201, got.Status)
	assert.JSONEq(t, `{"a":1}`, string(got.Result))

	require.NoError(t, store.Release(ctx, "k1"))
	reserved, err = store.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)
}
