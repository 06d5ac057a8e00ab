package repository

import (
	"context"
	"fmt"
	"time"

	"upload-broker/config"
	"upload-broker/internal/util"
)

// RateLimitRepository : счётчик выдачи грантов на владельца в минутном окне.
// INCR в Redis атомарен, конкурентные запросы одного владельца
// не теряют обновлений.
type RateLimitRepository struct {
	client *config.RedisClient
	limit  int64
	window time.Duration
}

func NewRateLimitRepository(rdb *config.RedisClient, limit int64) *RateLimitRepository {
	return &RateLimitRepository{
		client: rdb,
		limit:  limit,
		window: time.Minute,
	}
}

func (r *RateLimitRepository) Allow(ctx context.Context, ownerUUID string) (bool, error) {
	key := r.key(ownerUUID, time.Now())

	count, err := r.client.Client.Incr(ctx, key).Result()
	if err != nil {
		return false, util.LogError("[RateLimitRepo] ошибка инкремента счётчика", err)
	}

	// TTL выставляется только первым запросом окна
	if count == 1 {
		if err := r.client.Client.Expire(ctx, key, r.window).Err(); err != nil {
			return false, util.LogError("[RateLimitRepo] ошибка установки TTL счётчика", err)
		}
	}

	return count <= r.limit, nil
}

func (r *RateLimitRepository) key(ownerUUID string, now time.Time) string {
	return fmt.Sprintf("ratelimit:grants:%s:%d", ownerUUID, now.Unix()/int64(r.window.Seconds()))
}
