package services

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayGuardTTL = 48 * time.Hour

// ReplayGuard remembers recently processed notification ids so redelivered
// App Store notifications are acknowledged without re-applying their effects.
type ReplayGuard struct {
	RDB *redis.Client
	TTL time.Duration
}

// Seen marks the id and reports whether it was already present. Fails open:
// with no redis configured, or on redis errors, every id is treated as new,
// since reprocessing a notification is a harmless merge.
func (g *ReplayGuard) Seen(ctx context.Context, id string) bool {
	if g == nil || g.RDB == nil || id == "" {
		return false
	}
	ttl := g.TTL
	if ttl <= 0 {
		ttl = replayGuardTTL
	}
	fresh, err := g.RDB.SetNX(ctx, "apple_notif:"+id, 1, ttl).Result()
	if err != nil {
		log.Printf("[REPLAY] setnx id=%s err=%v", id, err)
		return false
	}
	return !fresh
}
