//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/igdump/internal/testutil"
	"github.com/Sternrassler/igdump/pkg/client"
	"github.com/Sternrassler/igdump/pkg/endpoint"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a Redis container for integration testing.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	t.Cleanup(func() {
		rdb.Close()
		container.Terminate(ctx)
	})

	return rdb
}

// TestCachedProfileFlow tests miss, upstream fetch, store and hit against a
// real Redis and the mock Instagram server.
func TestCachedProfileFlow(t *testing.T) {
	rdb := setupRedisContainer(t)

	mock := testutil.NewMockInstagram()
	defer mock.Close()
	mock.AddProfile(testutil.Account{ID: 42, Username: "someone", FullName: "Some One", Followers: 10, Following: 3})

	cfg := client.DefaultConfig(endpoint.Credential{SessionID: "sess", UserID: 1})
	cfg.BaseURL = mock.URL()
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	getter := NewProfileGetter(c, NewManager(rdb, time.Minute))
	ctx := context.Background()

	first, err := getter.GetProfile(ctx, "someone")
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	second, err := getter.GetProfile(ctx, "SomeOne")
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}

	if first != second {
		t.Errorf("cached profile differs: %+v vs %+v", first, second)
	}
	if got := len(mock.ProfileRequests()); got != 1 {
		t.Errorf("upstream profile requests = %d, want 1", got)
	}

	ttl, err := rdb.TTL(ctx, ProfileKey{Username: "someone"}.String()).Result()
	if err != nil {
		t.Fatalf("redis ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("redis TTL = %v, want within (0, 1m]", ttl)
	}
}
