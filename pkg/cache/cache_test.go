package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func setupTestCache(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { client.Close() })
	return client, mr
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", payload{Name: "dash", Count: 3}, time.Minute); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	var got payload
	hit, err := c.Get(ctx, "k", &got)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if !hit {
		t.Fatal("Expected cache hit")
	}
	if got.Name != "dash" || got.Count != 3 {
		t.Errorf("Expected round-tripped payload, got %+v", got)
	}
}

func TestCacheMiss(t *testing.T) {
	c, _ := setupTestCache(t)

	var got payload
	hit, err := c.Get(context.Background(), "absent", &got)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hit {
		t.Error("Expected miss for absent key")
	}
}

func TestCacheCorruptEntryBecomesMiss(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	mr.Set("bad", "{not json")

	var got payload
	hit, err := c.Get(ctx, "bad", &got)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hit {
		t.Error("Expected corrupt entry reported as miss")
	}
	// The corrupt entry was dropped.
	if mr.Exists("bad") {
		t.Error("Expected corrupt entry deleted")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "a", payload{}, time.Minute); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := c.Invalidate(ctx, "a", "never-existed"); err != nil {
		t.Fatalf("Failed to invalidate: %v", err)
	}

	var got payload
	if hit, _ := c.Get(ctx, "a", &got); hit {
		t.Error("Expected key gone after invalidate")
	}
}

func TestCacheInvalidatePattern(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	for _, key := range []string{"dashboard:org:1", "dashboard:org:2", "other:1"} {
		if err := c.Set(ctx, key, payload{}, time.Minute); err != nil {
			t.Fatalf("Failed to set %s: %v", key, err)
		}
	}

	if err := c.InvalidatePattern(ctx, "dashboard:*"); err != nil {
		t.Fatalf("Failed to invalidate pattern: %v", err)
	}

	var got payload
	if hit, _ := c.Get(ctx, "dashboard:org:1", &got); hit {
		t.Error("Expected dashboard keys dropped")
	}
	if hit, _ := c.Get(ctx, "other:1", &got); !hit {
		t.Error("Expected unrelated key kept")
	}
}

func TestNilClientIsNoop(t *testing.T) {
	var c *Client
	ctx := context.Background()

	if err := c.Set(ctx, "k", payload{}, time.Minute); err != nil {
		t.Errorf("Expected nil Set to be a no-op, got %v", err)
	}
	var got payload
	hit, err := c.Get(ctx, "k", &got)
	if err != nil || hit {
		t.Errorf("Expected nil Get to miss quietly, got hit=%v err=%v", hit, err)
	}
	if err := c.Invalidate(ctx, "k"); err != nil {
		t.Errorf("Expected nil Invalidate to be a no-op, got %v", err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("Expected nil Ping healthy, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Expected nil Close to be a no-op, got %v", err)
	}
}
