package testutil

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	redisTC "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/zhejian/shortlink/internal/infra"
)

// TestCache is a Redis container with a connected client
type TestCache struct {
	Client     *redis.Client
	ConnString string
	container  *redisTC.RedisContainer
}

// SetupTestCache starts Redis and connects through the same constructor the
// server uses
func SetupTestCache(ctx context.Context) (*TestCache, error) {
	container, err := redisTC.Run(ctx,
		"redis:8-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	connString, err := container.ConnectionString(ctx)
	if err != nil {
		return nil, abort(ctx, container, err)
	}
	client, err := infra.NewCacheClient(ctx, connString)
	if err != nil {
		return nil, abort(ctx, container, err)
	}

	return &TestCache{Client: client, ConnString: connString, container: container}, nil
}

// Cleanup drops every cached mapping and negative entry
func (t *TestCache) Cleanup(ctx context.Context) {
	if t == nil || t.Client == nil {
		return
	}
	t.Client.FlushDB(ctx)
}

// Teardown closes the client and terminates the container
func (t *TestCache) Teardown(ctx context.Context) {
	if t.Client != nil {
		_ = t.Client.Close()
	}
	if t.container != nil {
		_ = t.container.Terminate(ctx)
	}
}
