package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/igdump/pkg/client"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips the test when none is
// running. The integration build tag covers the same paths with a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := rdb.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})

	return rdb
}

func testProfile() client.Profile {
	return client.Profile{
		FullName:          "Some One",
		Username:          "someone",
		Biography:         "bio",
		FollowerCount:     10,
		FollowingCount:    3,
		Category:          "ARTIST",
		ID:                42,
		DeclaredFollowing: 3,
	}
}

func TestNewManager(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()

	manager := NewManager(rdb, time.Hour)
	if manager.redis != rdb {
		t.Error("Manager redis client not set correctly")
	}
	if manager.TTL() != time.Hour {
		t.Errorf("TTL() = %v, want 1h", manager.TTL())
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil, time.Hour)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t), 5*time.Minute)
	ctx := context.Background()
	key := ProfileKey{Username: "someone"}

	if err := manager.Set(ctx, key, testProfile()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Profile != testProfile() {
		t.Errorf("Profile mismatch: got %+v, want %+v", entry.Profile, testProfile())
	}
	if ttl := time.Until(entry.Expires); ttl <= 4*time.Minute || ttl > 5*time.Minute {
		t.Errorf("entry TTL = %v, want about 5m", ttl)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t), time.Minute)

	_, err := manager.Get(context.Background(), ProfileKey{Username: "nobody"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	rdb := setupTestRedis(t)
	manager := NewManager(rdb, time.Minute)
	ctx := context.Background()
	key := ProfileKey{Username: "broken"}

	if err := rdb.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := manager.Get(ctx, key)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestManager_Set_ZeroTTLDisablesStorage(t *testing.T) {
	manager := NewManager(setupTestRedis(t), 0)
	ctx := context.Background()
	key := ProfileKey{Username: "someone"}

	if err := manager.Set(ctx, key, testProfile()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss with zero TTL, got %v", err)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t), time.Minute)
	ctx := context.Background()
	key := ProfileKey{Username: "someone"}

	if err := manager.Set(ctx, key, testProfile()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}
