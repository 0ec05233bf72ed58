package database

import (
	"context"
	"testing"
	"time"

	"ms-attendance/internal/config"
	"ms-attendance/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectPostgresGivesUp(t *testing.T) {
	RetryDelay = time.Millisecond
	t.Cleanup(func() { RetryDelay = 2 * time.Second })

	_, _, err := ConnectPostgres(context.Background(), config.DatabaseConfig{}, logger.Discard())
	assert.EqualError(t, err, "POSTGRES_DSN not set")

	_, _, err = ConnectPostgres(context.Background(), config.DatabaseConfig{
		DSN:            "postgres://u:p@127.0.0.1:1/attendance?sslmode=disable&connect_timeout=1",
		ConnectRetries: 2,
	}, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, logger.Discard())
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	mr.Close()
	_, err = ConnectRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, logger.Discard())
	assert.Error(t, err)
}
