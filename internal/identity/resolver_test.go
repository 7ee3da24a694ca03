package identity

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

func TestStoreResolver(t *testing.T) {
	s, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.UpsertUser(ctx, &store.User{ID: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	r := NewStoreResolver(s)

	u, err := r.Resolve(ctx, "alice")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if u.ID != "alice" || u.DisplayName != "Alice" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := r.Resolve(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

type countingResolver struct {
	calls atomic.Int32
}

func (c *countingResolver) Resolve(_ context.Context, userID string) (User, error) {
	c.calls.Add(1)
	if userID == "ghost" {
		return User{}, ErrUserNotFound
	}
	return User{ID: userID, DisplayName: "User " + userID}, nil
}

func testRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("WIRECHAT_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCachedResolverHitsCache(t *testing.T) {
	client := testRedisClient(t)
	ctx := context.Background()
	logger := zerolog.Nop()

	next := &countingResolver{}
	r := NewCachedResolver(next, client, time.Minute, &logger)
	r.prefix = "wirechat:test:" + t.Name() + ":"
	t.Cleanup(func() { _ = r.Invalidate(ctx, "alice") })

	for n := 0; n < 3; n++ {
		u, err := r.Resolve(ctx, "alice")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if u.DisplayName != "User alice" {
			t.Fatalf("unexpected user: %+v", u)
		}
	}
	if got := next.calls.Load(); got != 1 {
		t.Fatalf("expected 1 underlying lookup, got %d", got)
	}

	if err := r.Invalidate(ctx, "alice"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := r.Resolve(ctx, "alice"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := next.calls.Load(); got != 2 {
		t.Fatalf("expected lookup after invalidation, got %d calls", got)
	}
}

func TestCachedResolverDoesNotCacheMisses(t *testing.T) {
	client := testRedisClient(t)
	ctx := context.Background()
	logger := zerolog.Nop()

	next := &countingResolver{}
	r := NewCachedResolver(next, client, time.Minute, &logger)
	r.prefix = "wirechat:test:" + t.Name() + ":"

	for n := 0; n < 2; n++ {
		if _, err := r.Resolve(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	}
	if got := next.calls.Load(); got != 2 {
		t.Fatalf("expected misses to reach the resolver, got %d calls", got)
	}
}

func TestCachedResolverFallsBackWhenRedisDown(t *testing.T) {
	logger := zerolog.Nop()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	next := &countingResolver{}
	r := NewCachedResolver(next, client, time.Minute, &logger)

	u, err := r.Resolve(context.Background(), "bob")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if u.ID != "bob" {
		t.Fatalf("unexpected user: %+v", u)
	}
}
