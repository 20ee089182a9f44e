//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iam/internal/platform/config"
	"iam/internal/platform/redis"
	"iam/pkg/testutil/containers"
)

func TestClient(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	client, err := redis.NewWithRegisterer(ctx, config.RedisConfig{
		URL:          rc.URL,
		PoolSize:     4,
		MinIdleConns: 1,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}, reg)
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	assert.NoError(t, client.Health(ctx))
	client.RecordPoolStats()
	assert.GreaterOrEqual(t, promtestutil.ToFloat64(client.Metrics().TotalConns), 1.0)

	statsCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, client.RunPoolStats(statsCtx, 10*time.Millisecond))
}

func TestNewWithoutURL(t *testing.T) {
	client, err := redis.New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
