package redisqueue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKey = "orders:expiry:due"

// ExpiryQueue keeps one member per order id in a sorted set scored by due time.
// Rescheduling an order overwrites its score. Claiming removes the member, so a job goes to one replica only.
type ExpiryQueue struct {
	client *redis.Client
	key    string
}

func NewExpiryQueue(ctx context.Context, redisURL string) (*ExpiryQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &ExpiryQueue{client: client, key: defaultKey}, nil
}

// WithKey returns a queue sharing the connection but using another sorted set.
func (q *ExpiryQueue) WithKey(key string) *ExpiryQueue {
	return &ExpiryQueue{client: q.client, key: key}
}

func (q *ExpiryQueue) Close() error {
	return q.client.Close()
}

func (q *ExpiryQueue) Schedule(ctx context.Context, orderID string, dueAt time.Time) error {
	return q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(dueAt.UnixNano()),
		Member: orderID,
	}).Err()
}

// ClaimDue returns up to limit order ids due at or before now, earliest first.
// An id another worker removed first is skipped.
func (q *ExpiryQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixNano(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due expiries: %w", err)
	}

	claimed := make([]string, 0, len(ids))
	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, q.key, id).Result()
		if err != nil {
			return claimed, fmt.Errorf("failed to claim expiry %s: %w", id, err)
		}
		if removed == 0 {
			continue
		}
		claimed = append(claimed, id)
	}
	return claimed, nil
}

func (q *ExpiryQueue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}
