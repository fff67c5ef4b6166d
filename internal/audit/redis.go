package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mpesa_backend/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	ListKey          = "mpesa:callbacks:audit"
	outcomeKeyPrefix = "mpesa:callback:"

	DefaultMaxEntries = 10000
	DefaultTTL        = 30 * 24 * time.Hour
)

// redisClient is the subset of *redis.Client the recorder uses.
type redisClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisRecorder appends every outcome to a capped list and keeps the latest
// outcome per checkout id under its own key.
type RedisRecorder struct {
	rdb        redisClient
	maxEntries int64
	ttl        time.Duration
}

func NewRedisRecorder(rdb redisClient) *RedisRecorder {
	return &RedisRecorder{rdb: rdb, maxEntries: DefaultMaxEntries, ttl: DefaultTTL}
}

// OutcomeKey is where the last outcome for a checkout id is stored.
func OutcomeKey(checkoutRequestID string) string {
	return outcomeKeyPrefix + checkoutRequestID
}

func (r *RedisRecorder) Record(ctx context.Context, out domain.CallbackOutcome) error {
	data, err := json.Marshal(NewEntry(out))
	if err != nil {
		return err
	}

	if err := r.rdb.LPush(ctx, ListKey, data).Err(); err != nil {
		return fmt.Errorf("audit lpush: %w", err)
	}
	if err := r.rdb.LTrim(ctx, ListKey, 0, r.maxEntries-1).Err(); err != nil {
		return fmt.Errorf("audit ltrim: %w", err)
	}

	if out.CheckoutRequestID == "" {
		return nil
	}
	if err := r.rdb.Set(ctx, OutcomeKey(out.CheckoutRequestID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("audit set: %w", err)
	}
	return nil
}
