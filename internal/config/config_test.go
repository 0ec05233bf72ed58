package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8085", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, 5, cfg.Attendance.MaxRetries)
	assert.Equal(t, time.Minute, cfg.Attendance.SweepInterval)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "role", cfg.Auth.RoleClaim)
	assert.Len(t, cfg.Kafka.Topics.All(), 3)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", ":9000")
	t.Setenv("DB_TX_TIMEOUT", "750ms")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("CHECKIN_MAX_RETRIES", "9")
	t.Setenv("STATUS_SWEEP_INTERVAL", "30s")
	t.Setenv("SCAN_LOCK_TTL", "2s")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Database.TxTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 9, cfg.Attendance.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Attendance.SweepInterval)
	assert.Equal(t, 2*time.Second, cfg.Redis.ScanLockTTL)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("DB_TX_TIMEOUT", "soon")
	t.Setenv("CHECKIN_MAX_RETRIES", "many")
	t.Setenv("REDIS_ENABLED", "perhaps")
	t.Setenv("KAFKA_BROKERS", " , ")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, 5, cfg.Attendance.MaxRetries)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}
