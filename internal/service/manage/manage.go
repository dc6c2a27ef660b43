package manage

import (
	"context"
	"fmt"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/errs"
	"gitee.com/flycash/channel-gateway/internal/pkg/vault"
	"gitee.com/flycash/channel-gateway/internal/repository"
	"gitee.com/flycash/channel-gateway/internal/service/health"
	"github.com/ecodeclub/ekit/slice"
	"github.com/sony/sonyflake"
)

// Service 供应商配置管理服务接口
// 面向管理端，读取类方法永远不返回可解封的凭证
//
//go:generate mockgen -source=./manage.go -destination=./mocks/manage.mock.go -package=managemocks -typed Service
type Service interface {
	// CreateConfig 创建配置，初始status=TESTING且未启用，探测通过才能参与路由
	CreateConfig(ctx context.Context, cfg domain.ProviderConfig, plainCredentials string) (domain.ProviderConfig, error)
	// UpdateConfig 更新配置，plainCredentials为空表示不更新凭证
	UpdateConfig(ctx context.Context, cfg domain.ProviderConfig, plainCredentials string) error
	// DeleteConfig 删除配置，删除默认配置会自动顺延新默认
	DeleteConfig(ctx context.Context, id int64) error
	// GetByID 根据ID获取配置，凭证已脱敏
	GetByID(ctx context.Context, id int64) (domain.ProviderConfig, error)
	// ListByTenantChannel 获取租户在指定渠道的全部配置，凭证已脱敏
	ListByTenantChannel(ctx context.Context, tenantID int64, channel domain.ChannelType) ([]domain.ProviderConfig, error)
	// SetDefault 设为默认，目标必须已启用且status=ACTIVE
	SetDefault(ctx context.Context, id int64) error
	// Activate 人工启用，配置回到TESTING等待探测
	Activate(ctx context.Context, id int64) error
	// Deactivate 人工停用，如停的是默认配置会自动顺延新默认
	Deactivate(ctx context.Context, id int64) error
	// TestConnection 人工触发一次探测
	TestConnection(ctx context.Context, id int64) (domain.HealthCheckResult, error)
}

type service struct {
	repo        repository.ProviderConfigRepository
	vault       *vault.Vault
	monitor     health.Monitor
	idGenerator *sonyflake.Sonyflake
}

func NewService(
	repo repository.ProviderConfigRepository,
	v *vault.Vault,
	monitor health.Monitor,
	idGenerator *sonyflake.Sonyflake,
) Service {
	return &service{
		repo:        repo,
		vault:       v,
		monitor:     monitor,
		idGenerator: idGenerator,
	}
}

func (s *service) CreateConfig(ctx context.Context, cfg domain.ProviderConfig, plainCredentials string) (domain.ProviderConfig, error) {
	if err := s.validate(cfg); err != nil {
		return domain.ProviderConfig{}, err
	}
	if plainCredentials == "" {
		return domain.ProviderConfig{}, fmt.Errorf("%w: 凭证不能为空", errs.ErrInvalidParameter)
	}

	id, err := s.idGenerator.NextID()
	if err != nil {
		return domain.ProviderConfig{}, fmt.Errorf("%w: 生成配置ID失败", errs.ErrInvalidParameter)
	}
	cfg.ID = int64(id)

	sealed, err := s.vault.Seal(plainCredentials)
	if err != nil {
		return domain.ProviderConfig{}, err
	}
	cfg.Credentials = sealed

	// 新配置必须先探测通过、再人工启用，才能进入候选集
	cfg.Status = domain.HealthStatusTesting
	cfg.IsActive = false
	cfg.IsDefault = false
	cfg.ErrorCount = 0

	created, err := s.repo.Create(ctx, cfg)
	if err != nil {
		return domain.ProviderConfig{}, err
	}
	return redact(created), nil
}

func (s *service) validate(cfg domain.ProviderConfig) error {
	if cfg.TenantID <= 0 {
		return fmt.Errorf("%w: 租户ID非法", errs.ErrInvalidParameter)
	}
	if cfg.Name == "" {
		return fmt.Errorf("%w: 供应商名称不能为空", errs.ErrInvalidParameter)
	}
	if !cfg.Channel.IsValid() {
		return fmt.Errorf("%w: 不支持的渠道类型", errs.ErrInvalidParameter)
	}
	if cfg.Priority < 0 {
		return fmt.Errorf("%w: 优先级不能为负数", errs.ErrInvalidParameter)
	}
	switch cfg.Channel {
	case domain.ChannelPayment:
		if cfg.Payment == nil || len(cfg.Payment.SupportedCurrencies) == 0 {
			return fmt.Errorf("%w: 支付渠道必须配置支持的币种", errs.ErrInvalidParameter)
		}
		if cfg.Payment.MinAmount < 0 || cfg.Payment.MaxAmount < 0 {
			return fmt.Errorf("%w: 金额限制不能为负数", errs.ErrInvalidParameter)
		}
		if cfg.Payment.MaxAmount > 0 && cfg.Payment.MinAmount > cfg.Payment.MaxAmount {
			return fmt.Errorf("%w: 最小金额不能大于最大金额", errs.ErrInvalidParameter)
		}
	case domain.ChannelEmail:
		if cfg.Quota == nil {
			return fmt.Errorf("%w: 邮件渠道必须配置配额", errs.ErrInvalidParameter)
		}
		if cfg.Quota.DailyLimit < 0 || cfg.Quota.HourlyLimit < 0 {
			return fmt.Errorf("%w: 配额限制不能为负数", errs.ErrInvalidParameter)
		}
	}
	return nil
}

func (s *service) UpdateConfig(ctx context.Context, cfg domain.ProviderConfig, plainCredentials string) error {
	existing, err := s.repo.FindByID(ctx, cfg.ID)
	if err != nil {
		return err
	}
	// 租户和渠道是身份，不允许改
	cfg.TenantID = existing.TenantID
	cfg.Channel = existing.Channel
	if err := s.validate(cfg); err != nil {
		return err
	}

	cfg.Credentials = ""
	if plainCredentials != "" {
		sealed, err := s.vault.Seal(plainCredentials)
		if err != nil {
			return err
		}
		cfg.Credentials = sealed
	}
	return s.repo.Update(ctx, cfg)
}

func (s *service) DeleteConfig(ctx context.Context, id int64) error {
	cfg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, cfg)
}

func (s *service) GetByID(ctx context.Context, id int64) (domain.ProviderConfig, error) {
	cfg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.ProviderConfig{}, err
	}
	return redact(cfg), nil
}

func (s *service) ListByTenantChannel(ctx context.Context, tenantID int64, channel domain.ChannelType) ([]domain.ProviderConfig, error) {
	cfgs, err := s.repo.FindByTenantChannel(ctx, tenantID, channel)
	if err != nil {
		return nil, err
	}
	return slice.Map(cfgs, func(_ int, src domain.ProviderConfig) domain.ProviderConfig {
		return redact(src)
	}), nil
}

func (s *service) SetDefault(ctx context.Context, id int64) error {
	cfg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.SetDefault(ctx, cfg)
}

func (s *service) Activate(ctx context.Context, id int64) error {
	return s.setActive(ctx, id, true)
}

func (s *service) Deactivate(ctx context.Context, id int64) error {
	return s.setActive(ctx, id, false)
}

func (s *service) setActive(ctx context.Context, id int64, active bool) error {
	cfg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.SetActive(ctx, cfg, active)
}

func (s *service) TestConnection(ctx context.Context, id int64) (domain.HealthCheckResult, error) {
	return s.monitor.TestConnection(ctx, id)
}

// redact 管理端读取永远拿不到密文本身
func redact(cfg domain.ProviderConfig) domain.ProviderConfig {
	cfg.Credentials = ""
	return cfg
}
