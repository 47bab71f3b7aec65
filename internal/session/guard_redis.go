package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "kyc-service/pkg/domain"
)

// RedisDispatchGuard is the shared guard for multi-replica deployments. A
// SetNX key per session makes Acquire return true exactly once; the TTL keeps
// abandoned keys from accumulating (a session can only be dispatched while it
// is live, so the key needs to outlast the session TTL, not be permanent).
type RedisDispatchGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDispatchGuard(client *redis.Client, sessionTTL time.Duration) *RedisDispatchGuard {
	return &RedisDispatchGuard{client: client, ttl: 2 * sessionTTL}
}

func dispatchKey(sessionID id.SessionID) string {
	return "kyc:dispatched:" + sessionID.String()
}

func (g *RedisDispatchGuard) Acquire(ctx context.Context, sessionID id.SessionID) (bool, error) {
	ok, err := g.client.SetNX(ctx, dispatchKey(sessionID), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire dispatch guard: %w", err)
	}
	return ok, nil
}

func (g *RedisDispatchGuard) Release(ctx context.Context, sessionID id.SessionID) error {
	if err := g.client.Del(ctx, dispatchKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("release dispatch guard: %w", err)
	}
	return nil
}
