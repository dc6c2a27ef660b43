package cache

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"github.com/pkg/errors"
)

var ErrKeyNotFound = errors.New("key not found")

const DefaultExpiredTime = 5 * time.Minute

// ProviderConfigCache 租户+渠道维度的配置列表缓存
// 配额计数与健康字段以数据库为准，缓存只用于候选集装配
type ProviderConfigCache interface {
	Get(ctx context.Context, tenantID int64, channel domain.ChannelType) ([]domain.ProviderConfig, error)
	Set(ctx context.Context, tenantID int64, channel domain.ChannelType, cfgs []domain.ProviderConfig) error
	Del(ctx context.Context, tenantID int64, channel domain.ChannelType) error
}

// ConfigListKey 生成缓存键
func ConfigListKey(tenantID int64, channel domain.ChannelType) string {
	return fmt.Sprintf("provider:configs:%d:%s", tenantID, channel)
}
