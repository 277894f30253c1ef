//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestRedisStore_Integration_RoundTrip(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := NewRedisStore(redisClient, "")
	ctx := context.Background()

	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() on empty Redis error = %v", err)
	}
	if !state.BlockedUntil.IsZero() {
		t.Errorf("empty state BlockedUntil = %v, want zero", state.BlockedUntil)
	}

	now := time.Now().UTC().Truncate(time.Second)
	want := State{BlockedUntil: now.Add(time.Minute), LastUpdate: now}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.BlockedUntil.Equal(want.BlockedUntil) {
		t.Errorf("BlockedUntil = %v, want %v", got.BlockedUntil, want.BlockedUntil)
	}

	ttl, err := redisClient.TTL(ctx, DefaultRedisKey).Result()
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within (0, 1m]", ttl)
	}

	// A closed window removes the key.
	if err := store.Save(ctx, State{LastUpdate: now}); err != nil {
		t.Fatalf("Save(closed) error = %v", err)
	}
	if n, _ := redisClient.Exists(ctx, DefaultRedisKey).Result(); n != 0 {
		t.Error("closed window left the key in Redis")
	}
}

func TestTracker_Integration_SharedAcrossInstances(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	first := NewTracker(Options{Store: NewRedisStore(redisClient, "test:rl"), Logger: zerolog.Nop()})
	second := NewTracker(Options{Store: NewRedisStore(redisClient, "test:rl"), Logger: zerolog.Nop()})

	if err := first.InterceptResponse(ctx, rateLimited("30")); err != nil {
		t.Fatal(err)
	}

	if err := second.InterceptRequest(ctx, newGet(t)); err == nil {
		t.Error("second instance ignored the shared back-off window")
	}

	if err := second.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if err := first.InterceptRequest(ctx, newGet(t)); err != nil {
		t.Errorf("request after shared Reset rejected: %v", err)
	}
}
