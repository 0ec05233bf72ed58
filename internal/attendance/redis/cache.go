package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"

	"github.com/go-redis/redis/v8"
)

// SnapshotCache keeps the latest attendance counters per event for the
// reporting endpoints. Entries expire after TTL; a miss falls back to the
// database.
type SnapshotCache struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration, l *logger.Logger) *SnapshotCache {
	return &SnapshotCache{Client: client, TTL: ttl, Logger: l}
}

func snapshotKey(eventID string) string {
	return "attendance_snapshot:" + eventID
}

func (c *SnapshotCache) Get(ctx context.Context, eventID string) (*models.AttendanceSnapshot, bool) {
	raw, err := c.Client.Get(ctx, snapshotKey(eventID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.Logger.Warn("REDIS", fmt.Sprintf("Snapshot read failed for %s: %v", eventID, err))
		}
		return nil, false
	}

	var snap models.AttendanceSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("Discarding corrupt snapshot for %s: %v", eventID, err))
		c.Invalidate(ctx, eventID)
		return nil, false
	}
	return &snap, true
}

func (c *SnapshotCache) Set(ctx context.Context, snapshot models.AttendanceSnapshot) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := c.Client.Set(ctx, snapshotKey(snapshot.EventID), raw, c.TTL).Err(); err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("Snapshot write failed for %s: %v", snapshot.EventID, err))
	}
}

func (c *SnapshotCache) Invalidate(ctx context.Context, eventID string) {
	if err := c.Client.Del(ctx, snapshotKey(eventID)).Err(); err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("Snapshot invalidation failed for %s: %v", eventID, err))
	}
}
