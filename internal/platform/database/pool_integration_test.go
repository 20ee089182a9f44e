//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iam/internal/platform/config"
	"iam/internal/platform/database"
	"iam/migrations"
	"iam/pkg/testutil/containers"
)

func TestPoolAndMigrate(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()

	pool, err := database.New(config.DatabaseConfig{
		URL:             pg.DSN,
		MaxOpenConns:    4,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	require.NotNil(t, pool)
	defer pool.Close()

	assert.NoError(t, pool.Health(ctx))

	reg := prometheus.NewRegistry()
	require.NoError(t, pool.RegisterMetrics(reg))
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	// the container already applied migrations; a second run must be a no-op
	require.NoError(t, database.Migrate(ctx, pool.DB(), migrations.FS))

	var count int
	require.NoError(t, pool.DB().QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name IN ('stamps', 'stamp_claims')`,
	).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestNewWithoutURL(t *testing.T) {
	pool, err := database.New(config.DatabaseConfig{})
	require.NoError(t, err)
	assert.Nil(t, pool)
	assert.Error(t, pool.Health(context.Background()))
	assert.NoError(t, pool.Close())
}
