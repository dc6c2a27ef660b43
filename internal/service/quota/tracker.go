package quota

import (
	"context"
	"time"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/repository"
)

const dateLayout = "2006-01-02"

// Tracker 配额追踪器
// 检查和自增是数据库里的同一条语句，并发请求不可能把计数挤过限额
//
//go:generate mockgen -source=./tracker.go -destination=./mocks/tracker.mock.go -package=quotamocks -typed Tracker
type Tracker interface {
	// CheckAndReserve 预占一次额度，窗口过期先重置再判断
	// 额度用尽是软条件，只把配置从本次候选集中剔除，不改健康状态
	CheckAndReserve(ctx context.Context, cfg domain.ProviderConfig) (bool, error)
	// Release 归还一次预占，用于外部调用失败后的回退
	Release(ctx context.Context, cfg domain.ProviderConfig) error
}

type tracker struct {
	repo repository.ProviderConfigRepository
}

func NewTracker(repo repository.ProviderConfigRepository) Tracker {
	return &tracker{repo: repo}
}

func (t *tracker) CheckAndReserve(ctx context.Context, cfg domain.ProviderConfig) (bool, error) {
	// 支付渠道没有时间窗口配额，金额/币种/国家是请求时约束
	// 为了对称保留同样的预占接口
	if cfg.Quota == nil {
		return true, nil
	}
	now := time.Now()
	return t.repo.ReserveQuota(ctx, cfg, now.Format(dateLayout), now.Hour())
}

func (t *tracker) Release(ctx context.Context, cfg domain.ProviderConfig) error {
	if cfg.Quota == nil {
		return nil
	}
	return t.repo.ReleaseQuota(ctx, cfg)
}
