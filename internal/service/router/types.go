package router

import (
	"context"

	"gitee.com/flycash/channel-gateway/internal/domain"
)

// Router 出站渠道路由器，回答"这个请求现在该用哪个供应商配置"
//
//go:generate mockgen -source=./types.go -destination=./mocks/router.mock.go -package=routermocks -typed Router
type Router interface {
	// Resolve 选出一个健康的、额度未用尽的、约束满足的供应商配置
	// 没有候选时返回ErrNoAvailableProvider
	Resolve(ctx context.Context, req domain.ResolveRequest) (domain.Resolution, error)
	// RecordOutcome 回报一次外部调用的结果，驱动配额回退和健康状态机
	RecordOutcome(ctx context.Context, configID int64, out domain.Outcome) error
	// NewChain 开启一条有界的故障转移尝试链
	// 同一条链内刚失败过的配置不会再被返回
	NewChain(req domain.ResolveRequest) Chain
}

// Chain 一次逻辑请求内的尝试链，最多尝试min(候选数, 5)次
//
//go:generate mockgen -source=./types.go -destination=./mocks/chain.mock.go -package=routermocks -typed Chain
type Chain interface {
	// Next 获取下一个候选配置
	Next(ctx context.Context) (domain.Resolution, error)
	// Report 回报上一个Next返回配置的调用结果
	Report(ctx context.Context, out domain.Outcome) error
}
