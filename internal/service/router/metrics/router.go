package metrics

import (
	"context"
	"time"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/service/router"
	"github.com/prometheus/client_golang/prometheus"
)

// Router 为路由器实现添加指标收集的装饰器
type Router struct {
	router                 router.Router
	resolveDurationSummary *prometheus.SummaryVec
	resolveCounter         *prometheus.CounterVec
	outcomeCounter         *prometheus.CounterVec
}

// NewRouter 创建一个新的带有指标收集的路由器
func NewRouter(r router.Router) *Router {
	resolveDurationSummary := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "gateway_resolve_duration_seconds",
			Help:       "路由选取耗时统计（秒）",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001},
			MaxAge:     time.Minute * 5,
		},
		[]string{"channel", "result"},
	)

	resolveCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_resolve_total",
			Help: "路由选取总数",
		},
		[]string{"channel"},
	)

	outcomeCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_outcome_total",
			Help: "外部调用结果回报统计",
		},
		[]string{"success"},
	)

	// 注册指标
	prometheus.MustRegister(resolveDurationSummary, resolveCounter, outcomeCounter)

	return &Router{
		router:                 r,
		resolveDurationSummary: resolveDurationSummary,
		resolveCounter:         resolveCounter,
		outcomeCounter:         outcomeCounter,
	}
}

// Resolve 选取供应商配置并记录指标
func (m *Router) Resolve(ctx context.Context, req domain.ResolveRequest) (domain.Resolution, error) {
	startTime := time.Now()

	m.resolveCounter.WithLabelValues(req.Channel.String()).Inc()

	res, err := m.router.Resolve(ctx, req)

	result := "ok"
	if err != nil {
		result = "no_provider"
	}
	m.resolveDurationSummary.WithLabelValues(
		req.Channel.String(),
		result,
	).Observe(time.Since(startTime).Seconds())

	return res, err
}

func (m *Router) RecordOutcome(ctx context.Context, configID int64, out domain.Outcome) error {
	success := "false"
	if out.Success {
		success = "true"
	}
	m.outcomeCounter.WithLabelValues(success).Inc()
	return m.router.RecordOutcome(ctx, configID, out)
}

func (m *Router) NewChain(req domain.ResolveRequest) router.Chain {
	return m.router.NewChain(req)
}
