package health

import (
	"context"
	"errors"
	"time"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/errs"
	"gitee.com/flycash/channel-gateway/internal/pkg/vault"
	"gitee.com/flycash/channel-gateway/internal/repository"
	"github.com/gotomicro/ego/core/elog"
)

const (
	// DefaultFailureThreshold 连续失败达到该值后进入ERROR
	DefaultFailureThreshold = 3
	defaultProbeTimeout     = 5 * time.Second
)

// Monitor 健康监控器，驱动配置的健康状态机
//
// 状态机：
//
//	TESTING --探测成功--> ACTIVE
//	ACTIVE --失败(1..N-1)--> DEGRADED（仍可选，降级）
//	ACTIVE/DEGRADED --连续失败N--> ERROR（退出候选，人工重测才能恢复）
//	凭证/认证失败 --无视阈值--> ERROR
//	任意状态 --人工停用--> INACTIVE --人工启用--> TESTING
//
//go:generate mockgen -source=./monitor.go -destination=./mocks/monitor.mock.go -package=healthmocks -typed Monitor
type Monitor interface {
	// TestConnection 执行一次探测。只允许人工触发或后台任务调用，
	// 绝不允许出现在路由热路径上
	TestConnection(ctx context.Context, configID int64) (domain.HealthCheckResult, error)
	// RecordSuccess 记录一次外部调用成功
	RecordSuccess(ctx context.Context, cfg domain.ProviderConfig) error
	// RecordFailure 记录一次外部调用失败，返回更新后的状态
	RecordFailure(ctx context.Context, cfg domain.ProviderConfig, out domain.Outcome) (domain.HealthStatus, error)
}

type monitor struct {
	repo      repository.ProviderConfigRepository
	probers   *Registry
	vault     *vault.Vault
	threshold int
	timeout   time.Duration
	logger    *elog.Component
}

func NewMonitor(repo repository.ProviderConfigRepository, probers *Registry, v *vault.Vault) Monitor {
	return &monitor{
		repo:      repo,
		probers:   probers,
		vault:     v,
		threshold: DefaultFailureThreshold,
		timeout:   defaultProbeTimeout,
		logger:    elog.DefaultLogger,
	}
}

func (m *monitor) TestConnection(ctx context.Context, configID int64) (domain.HealthCheckResult, error) {
	cfg, err := m.repo.FindByID(ctx, configID)
	if err != nil {
		return domain.HealthCheckResult{}, err
	}

	// 凭证解封失败没必要再握手，直接走快速熔断
	credentials, err := m.vault.Unseal(cfg.Credentials)
	if err != nil {
		return m.onAuthFailure(ctx, cfg, "凭证解封失败")
	}

	prober, err := m.probers.Get(cfg.Name, cfg.Channel)
	if err != nil {
		return domain.HealthCheckResult{}, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	probeErr := prober.Probe(probeCtx, cfg, credentials)

	if probeErr == nil {
		if err := m.repo.MarkProbeSuccess(ctx, cfg); err != nil {
			return domain.HealthCheckResult{}, err
		}
		return domain.HealthCheckResult{Success: true, Message: "ok"}, nil
	}

	if errors.Is(probeErr, errs.ErrCredential) {
		return m.onAuthFailure(ctx, cfg, probeErr.Error())
	}

	message := probeErr.Error()
	if errors.Is(probeErr, context.DeadlineExceeded) {
		message = "探测超时"
	}
	if _, err := m.repo.MarkFailure(ctx, cfg, message, m.threshold); err != nil {
		return domain.HealthCheckResult{}, err
	}
	return domain.HealthCheckResult{Success: false, Message: message}, nil
}

func (m *monitor) onAuthFailure(ctx context.Context, cfg domain.ProviderConfig, message string) (domain.HealthCheckResult, error) {
	if err := m.repo.MarkAuthFailure(ctx, cfg, message); err != nil {
		return domain.HealthCheckResult{}, err
	}
	m.logger.Warn("认证失败，配置直接熔断",
		elog.Any("configID", cfg.ID),
		elog.String("provider", cfg.Name))
	return domain.HealthCheckResult{Success: false, Message: message}, nil
}

func (m *monitor) RecordSuccess(ctx context.Context, cfg domain.ProviderConfig) error {
	return m.repo.MarkSuccess(ctx, cfg)
}

func (m *monitor) RecordFailure(ctx context.Context, cfg domain.ProviderConfig, out domain.Outcome) (domain.HealthStatus, error) {
	if out.AuthRejected {
		if err := m.repo.MarkAuthFailure(ctx, cfg, out.Message); err != nil {
			return "", err
		}
		return domain.HealthStatusError, nil
	}
	return m.repo.MarkFailure(ctx, cfg, out.Message, m.threshold)
}
