package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"upload-broker/config"
	"upload-broker/internal/model"
	"upload-broker/internal/util"
)

type CacheRepository struct {
	client *config.RedisClient
	ttl    time.Duration
}

func NewCacheRepository(rdb *config.RedisClient, ttl time.Duration) *CacheRepository {
	return &CacheRepository{rdb, ttl}
}

func (r *CacheRepository) SetGrant(ctx context.Context, grant *model.UploadGrant) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return util.LogError("ошибка сериализации гранта", err)
	}

	cmd := r.client.Client.Set(ctx, r.key(grant.UUID), data, r.ttl)
	if err = cmd.Err(); err != nil {
		return util.LogError("ошибка сохранения в Redis", err)
	}
	if cmd.Val() != "OK" {
		return fmt.Errorf("неожиданный ответ Redis: %s", cmd.Val())
	}

	return nil
}

func (r *CacheRepository) GetGrant(ctx context.Context, uploadUUID string) (*model.UploadGrant, error) {
	val, err := r.client.Client.Get(ctx, r.key(uploadUUID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // нет в кэше
	} else if err != nil {
		return nil, util.LogError("ошибка получения гранта из Redis", err)
	}

	var grant model.UploadGrant
	if err := json.Unmarshal([]byte(val), &grant); err != nil {
		return nil, util.LogError("ошибка десериализации гранта из кэша", err)
	}
	return &grant, nil
}

func (r *CacheRepository) DeleteGrant(ctx context.Context, uploadUUID string) error {
	if err := r.client.Client.Del(ctx, r.key(uploadUUID)).Err(); err != nil {
		return util.LogError("ошибка удаления гранта из Redis", err)
	}
	return nil
}

func (r *CacheRepository) key(uploadUUID string) string {
	return fmt.Sprintf("grant:%s", uploadUUID)
}
