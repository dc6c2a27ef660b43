package health

import (
	"context"
	"time"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/pkg/loopjob"
	"gitee.com/flycash/channel-gateway/internal/repository"
	"github.com/gotomicro/ego/core/elog"
	"github.com/meoying/dlock-go"
	"golang.org/x/sync/errgroup"
)

const (
	sweepBatchSize   = 20
	sweepConcurrency = 4
	sweepIdlePause   = 30 * time.Second
)

// SweepTask 后台健康巡检
// 只探测TESTING和DEGRADED的配置：ERROR不允许静默恢复，必须人工重测
type SweepTask struct {
	dclient dlock.Client
	monitor Monitor
	repo    repository.ProviderConfigRepository
	logger  *elog.Component
}

func NewSweepTask(dclient dlock.Client, monitor Monitor, repo repository.ProviderConfigRepository) *SweepTask {
	return &SweepTask{
		dclient: dclient,
		monitor: monitor,
		repo:    repo,
		logger:  elog.DefaultLogger,
	}
}

func (s *SweepTask) Start(ctx context.Context) {
	const key = "channel_gateway_health_sweep"
	lj := loopjob.NewLockedLoop(s.dclient, s.sweep, key)
	lj.Run(ctx)
}

func (s *SweepTask) sweep(ctx context.Context) error {
	offset := 0
	for {
		findCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		cfgs, err := s.repo.FindByStatuses(findCtx,
			[]domain.HealthStatus{domain.HealthStatusTesting, domain.HealthStatusDegraded},
			offset, sweepBatchSize)
		cancel()
		if err != nil {
			return err
		}

		var eg errgroup.Group
		eg.SetLimit(sweepConcurrency)
		for _, cfg := range cfgs {
			eg.Go(func() error {
				res, err := s.monitor.TestConnection(ctx, cfg.ID)
				if err != nil {
					s.logger.Error("巡检探测失败",
						elog.Any("configID", cfg.ID),
						elog.FieldErr(err))
					return nil
				}
				if !res.Success {
					s.logger.Warn("巡检探测未通过",
						elog.Any("configID", cfg.ID),
						elog.String("message", res.Message))
				}
				return nil
			})
		}
		_ = eg.Wait()

		if len(cfgs) < sweepBatchSize {
			// 待检配置不多，歇一会
			time.Sleep(sweepIdlePause)
			return nil
		}
		offset += len(cfgs)
	}
}
