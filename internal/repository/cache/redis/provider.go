package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/repository/cache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{
		rdb: rdb,
	}
}

func (c *Cache) Get(ctx context.Context, tenantID int64, channel domain.ChannelType) ([]domain.ProviderConfig, error) {
	key := cache.ConfigListKey(tenantID, channel)
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// 键不存在
			return nil, cache.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get provider configs from redis %w", err)
	}

	var cfgs []domain.ProviderConfig
	if err := json.Unmarshal([]byte(val), &cfgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider configs data %w", err)
	}
	return cfgs, nil
}

func (c *Cache) Set(ctx context.Context, tenantID int64, channel domain.ChannelType, cfgs []domain.ProviderConfig) error {
	key := cache.ConfigListKey(tenantID, channel)

	data, err := json.Marshal(cfgs)
	if err != nil {
		return fmt.Errorf("failed to marshal provider configs data %w", err)
	}

	if err := c.rdb.Set(ctx, key, data, cache.DefaultExpiredTime).Err(); err != nil {
		return fmt.Errorf("failed to set provider configs to redis %w", err)
	}
	return nil
}

func (c *Cache) Del(ctx context.Context, tenantID int64, channel domain.ChannelType) error {
	return c.rdb.Del(ctx, cache.ConfigListKey(tenantID, channel)).Err()
}
