package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-attendance/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrLockTimeout = errors.New("scan lock: timed out waiting for holder")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ScanLock is a short-lived per-ticket mutex. It only narrows the window for
// racing scans; row versions remain the source of truth.
type ScanLock struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewScanLock(client *redis.Client, ttl time.Duration, l *logger.Logger) *ScanLock {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &ScanLock{Client: client, TTL: ttl, Logger: l}
}

func lockKey(ticketID string) string {
	return "scan_lock:" + ticketID
}

// TryLock attempts to take the lock once.
func (l *ScanLock) TryLock(ctx context.Context, ticketID, owner string) (bool, error) {
	return l.Client.SetNX(ctx, lockKey(ticketID), owner, l.TTL).Result()
}

// Unlock releases the lock if owner still holds it.
func (l *ScanLock) Unlock(ctx context.Context, ticketID, owner string) error {
	return releaseScript.Run(ctx, l.Client, []string{lockKey(ticketID)}, owner).Err()
}

// Lock waits up to the lock TTL for the ticket to become free and returns
// the matching unlock function.
func (l *ScanLock) Lock(ctx context.Context, ticketID string) (func(), error) {
	owner := uuid.NewString()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = l.TTL

	err := backoff.Retry(func() error {
		ok, err := l.TryLock(ctx, ticketID, owner)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return ErrLockTimeout
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, err
	}

	return func() {
		// Release on a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.Unlock(releaseCtx, ticketID, owner); err != nil {
			l.Logger.Warn("REDIS", fmt.Sprintf("Failed to release scan lock for %s: %v", ticketID, err))
		}
	}, nil
}
