package local

import (
	"context"
	"time"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/repository/cache"
	ca "github.com/patrickmn/go-cache"
)

// 本地缓存过期要比redis短，减少状态变化后的陈旧窗口
const defaultExpiration = 5 * time.Second

type Cache struct {
	c *ca.Cache
}

func NewCache() *Cache {
	return &Cache{
		c: ca.New(defaultExpiration, 2*defaultExpiration),
	}
}

func (l *Cache) Get(_ context.Context, tenantID int64, channel domain.ChannelType) ([]domain.ProviderConfig, error) {
	v, ok := l.c.Get(cache.ConfigListKey(tenantID, channel))
	if !ok {
		return nil, cache.ErrKeyNotFound
	}
	return v.([]domain.ProviderConfig), nil
}

func (l *Cache) Set(_ context.Context, tenantID int64, channel domain.ChannelType, cfgs []domain.ProviderConfig) error {
	l.c.Set(cache.ConfigListKey(tenantID, channel), cfgs, defaultExpiration)
	return nil
}

func (l *Cache) Del(_ context.Context, tenantID int64, channel domain.ChannelType) error {
	l.c.Delete(cache.ConfigListKey(tenantID, channel))
	return nil
}
