//go:build integration

package client

import (
	"context"
	"testing"

	"github.com/Sternrassler/adform-stats-client/internal/testutil"
	"github.com/Sternrassler/adform-stats-client/pkg/tokencache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()

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
	require.NoError(t, err, "start Redis container")

	endpoint, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err, "get Redis endpoint")

	redisClient := redis.NewClient(&redis.Options{Addr: endpoint})
	require.NoError(t, redisClient.Ping(ctx).Err(), "connect to Redis")

	t.Cleanup(func() {
		redisClient.Close()
		redisContainer.Terminate(ctx)
	})

	return redisClient
}

func TestIntegration_LoginReusesRedisToken(t *testing.T) {
	redisClient := setupRedisContainer(t)

	mock := testutil.NewMockAdform()
	defer mock.Close()
	mock.SetTokenResponse("integration-token", 3600)

	store := tokencache.NewManager(redisClient)

	for i := 0; i < 3; i++ {
		c := newCachingClient(t, mock, store)
		require.NoError(t, c.Login(context.Background(), testCreds), "login #%d", i)
		assert.Equal(t, "integration-token", c.Credential().AccessToken)
	}

	assert.Len(t, mock.RequestsTo(testutil.TokenPath), 1)
}

func TestIntegration_RejectedRedisTokenIsReplaced(t *testing.T) {
	redisClient := setupRedisContainer(t)
	ctx := context.Background()

	mock := testutil.NewMockAdform()
	defer mock.Close()
	mock.SetTokenResponse("fresh-token", 3600)
	mock.SetHandler(testutil.SubmitPath, acceptOnly("fresh-token"))

	store := tokencache.NewManager(redisClient)
	seeded := newMemoryTokenStore()
	seeded.seed(testCacheKey(mock), "revoked")
	entry, err := seeded.Get(ctx, testCacheKey(mock))
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, testCacheKey(mock), entry))

	c := newCachingClient(t, mock, store)
	require.NoError(t, c.Login(ctx, testCreds))
	_, err = c.Post(ctx, EndpointStats, nil)
	require.NoError(t, err)

	cached, err := store.Get(ctx, testCacheKey(mock))
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", cached.AccessToken)
	assert.Len(t, mock.RequestsTo(testutil.TokenPath), 1)
}
