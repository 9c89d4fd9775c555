// README: Shared upstream request budget: a Redis fixed window counted across API instances.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const windowKeyPrefix = "ratelimit:%s:%d"

// RedisWindow allows at most Limit requests per key in each Window.
type RedisWindow struct {
	redis  *redis.Client
	Limit  int64
	Window time.Duration
	now    func() time.Time
}

func NewRedisWindow(client *redis.Client, limit int64, window time.Duration) *RedisWindow {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisWindow{redis: client, Limit: limit, Window: window, now: time.Now}
}

// Allow counts one request against key and reports whether it fits the
// current window.
func (w *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	if w.Limit <= 0 {
		return true, nil
	}
	slot := w.now().UnixNano() / int64(w.Window)
	k := fmt.Sprintf(windowKeyPrefix, key, slot)

	pipe := w.redis.TxPipeline()
	incr := pipe.Incr(ctx, k)
	// the extra window covers clock skew between instances
	pipe.Expire(ctx, k, 2*w.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit %s: %w", key, err)
	}
	return incr.Val() <= w.Limit, nil
}
