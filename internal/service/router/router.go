package router

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/errs"
	"gitee.com/flycash/channel-gateway/internal/event/failover"
	"gitee.com/flycash/channel-gateway/internal/pkg/vault"
	"gitee.com/flycash/channel-gateway/internal/repository"
	"gitee.com/flycash/channel-gateway/internal/service/health"
	"gitee.com/flycash/channel-gateway/internal/service/quota"
	"github.com/gotomicro/ego/core/elog"
)

type router struct {
	repo     repository.ProviderConfigRepository
	quota    quota.Tracker
	monitor  health.Monitor
	vault    *vault.Vault
	producer failover.EventProducer
	logger   *elog.Component
}

func NewRouter(
	repo repository.ProviderConfigRepository,
	tracker quota.Tracker,
	monitor health.Monitor,
	v *vault.Vault,
	producer failover.EventProducer,
) Router {
	return &router{
		repo:     repo,
		quota:    tracker,
		monitor:  monitor,
		vault:    v,
		producer: producer,
		logger:   elog.DefaultLogger,
	}
}

func (r *router) Resolve(ctx context.Context, req domain.ResolveRequest) (domain.Resolution, error) {
	cands, err := r.candidates(ctx, req)
	if err != nil {
		return domain.Resolution{}, err
	}
	return r.pick(ctx, cands, nil)
}

// candidates 装配并排序候选集，排序结果是全序的：
// 默认配置最先，ACTIVE先于DEGRADED，然后priority升序，ctime升序兜底
func (r *router) candidates(ctx context.Context, req domain.ResolveRequest) ([]domain.ProviderConfig, error) {
	cfgs, err := r.repo.FindByTenantChannel(ctx, req.TenantID, req.Channel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrNoAvailableProvider, err)
	}

	cands := make([]domain.ProviderConfig, 0, len(cfgs))
	for _, cfg := range cfgs {
		if !cfg.Selectable() {
			continue
		}
		if req.Channel == domain.ChannelPayment &&
			cfg.Payment != nil && !cfg.Payment.Matches(req.Payment) {
			continue
		}
		cands = append(cands, cfg)
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.IsDefault != b.IsDefault {
			return a.IsDefault
		}
		aActive := a.Status == domain.HealthStatusActive
		bActive := b.Status == domain.HealthStatusActive
		if aActive != bActive {
			return aActive
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Ctime != b.Ctime {
			return a.Ctime < b.Ctime
		}
		return a.ID < b.ID
	})
	return cands, nil
}

// pick 按序尝试预占并解封凭证，返回第一个成功的候选
// 预占只发生在即将返回的候选上，落选者不会白占额度
func (r *router) pick(ctx context.Context, cands []domain.ProviderConfig, excluded map[int64]bool) (domain.Resolution, error) {
	for _, cfg := range cands {
		if excluded[cfg.ID] {
			continue
		}

		allowed, err := r.quota.CheckAndReserve(ctx, cfg)
		if err != nil {
			r.logger.Error("配额预占失败",
				elog.Any("configID", cfg.ID),
				elog.FieldErr(err))
			continue
		}
		if !allowed {
			// 额度用尽是软条件，跳过即可
			continue
		}

		credentials, err := r.vault.Unseal(cfg.Credentials)
		if err != nil {
			// 凭证坏掉只熔断这一个配置，归还预占后继续找下一个
			if relErr := r.quota.Release(ctx, cfg); relErr != nil {
				r.logger.Error("归还配额失败", elog.Any("configID", cfg.ID), elog.FieldErr(relErr))
			}
			if _, mErr := r.monitor.RecordFailure(ctx, cfg, domain.Outcome{
				AuthRejected: true,
				Message:      "凭证解封失败",
			}); mErr != nil {
				r.logger.Error("记录凭证失败状态失败", elog.Any("configID", cfg.ID), elog.FieldErr(mErr))
			}
			continue
		}

		return domain.Resolution{Config: cfg, Credentials: credentials}, nil
	}
	return domain.Resolution{}, errs.ErrNoAvailableProvider
}

func (r *router) RecordOutcome(ctx context.Context, configID int64, out domain.Outcome) error {
	cfg, err := r.repo.FindByID(ctx, configID)
	if err != nil {
		return err
	}

	if out.Success {
		return r.monitor.RecordSuccess(ctx, cfg)
	}

	// 失败的尝试不占额度
	if err := r.quota.Release(ctx, cfg); err != nil {
		r.logger.Error("归还配额失败", elog.Any("configID", cfg.ID), elog.FieldErr(err))
	}

	status, err := r.monitor.RecordFailure(ctx, cfg, out)
	if err != nil {
		return err
	}

	evt := failover.Event{
		TenantID:   cfg.TenantID,
		ConfigID:   cfg.ID,
		Channel:    cfg.Channel.String(),
		Provider:   cfg.Name,
		Status:     status.String(),
		Reason:     out.Message,
		OccurredAt: time.Now().UnixMilli(),
	}
	if err := r.producer.Produce(ctx, evt); err != nil {
		// 事件发不出去不影响主流程
		r.logger.Warn("故障转移事件发送失败", elog.Any("configID", cfg.ID), elog.FieldErr(err))
	}
	return nil
}

func (r *router) NewChain(req domain.ResolveRequest) Chain {
	return newChain(r, req)
}
