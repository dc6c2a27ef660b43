package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/errs"
	"gitee.com/flycash/channel-gateway/internal/repository/cache"
	"gitee.com/flycash/channel-gateway/internal/repository/dao"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gotomicro/ego/core/elog"
	"github.com/pkg/errors"
)

var ErrConfigNotFound = errs.ErrConfigNotFound

// ProviderConfigRepository 供应商配置仓储接口
//
//go:generate mockgen -source=./provider.go -destination=./mocks/provider.mock.go -package=repomocks -typed ProviderConfigRepository
type ProviderConfigRepository interface {
	// Create 创建供应商配置
	Create(ctx context.Context, cfg domain.ProviderConfig) (domain.ProviderConfig, error)
	// Update 更新供应商配置
	Update(ctx context.Context, cfg domain.ProviderConfig) error
	// Delete 删除供应商配置
	Delete(ctx context.Context, cfg domain.ProviderConfig) error
	// FindByID 根据ID查找
	FindByID(ctx context.Context, id int64) (domain.ProviderConfig, error)
	// FindByTenantChannel 查找租户在指定渠道的全部配置，走缓存
	FindByTenantChannel(ctx context.Context, tenantID int64, channel domain.ChannelType) ([]domain.ProviderConfig, error)
	// FindByStatuses 按健康状态分页查找
	FindByStatuses(ctx context.Context, statuses []domain.HealthStatus, offset, limit int) ([]domain.ProviderConfig, error)

	// SetDefault 事务性换默认
	SetDefault(ctx context.Context, cfg domain.ProviderConfig) error
	// SetActive 人工启停
	SetActive(ctx context.Context, cfg domain.ProviderConfig, active bool) error

	// ReserveQuota 原子预占一次配额
	ReserveQuota(ctx context.Context, cfg domain.ProviderConfig, date string, hour int) (bool, error)
	// ReleaseQuota 归还一次预占
	ReleaseQuota(ctx context.Context, cfg domain.ProviderConfig) error

	// MarkFailure 记录失败并返回更新后的状态
	MarkFailure(ctx context.Context, cfg domain.ProviderConfig, message string, threshold int) (domain.HealthStatus, error)
	// MarkAuthFailure 认证失败快速路径
	MarkAuthFailure(ctx context.Context, cfg domain.ProviderConfig, message string) error
	// MarkSuccess 记录成功
	MarkSuccess(ctx context.Context, cfg domain.ProviderConfig) error
	// MarkProbeSuccess 探测成功
	MarkProbeSuccess(ctx context.Context, cfg domain.ProviderConfig) error
}

type providerConfigRepository struct {
	dao    dao.ProviderConfigDAO
	local  cache.ProviderConfigCache
	redis  cache.ProviderConfigCache
	logger *elog.Component
}

func NewProviderConfigRepository(d dao.ProviderConfigDAO, local, redis cache.ProviderConfigCache) ProviderConfigRepository {
	return &providerConfigRepository{
		dao:    d,
		local:  local,
		redis:  redis,
		logger: elog.DefaultLogger,
	}
}

func (r *providerConfigRepository) Create(ctx context.Context, cfg domain.ProviderConfig) (domain.ProviderConfig, error) {
	created, err := r.dao.Create(ctx, r.toEntity(cfg))
	if err != nil {
		return domain.ProviderConfig{}, err
	}
	r.invalidate(ctx, cfg.TenantID, cfg.Channel)
	return r.toDomain(created), nil
}

func (r *providerConfigRepository) Update(ctx context.Context, cfg domain.ProviderConfig) error {
	if err := r.dao.Update(ctx, r.toEntity(cfg)); err != nil {
		return err
	}
	r.invalidate(ctx, cfg.TenantID, cfg.Channel)
	return nil
}

func (r *providerConfigRepository) Delete(ctx context.Context, cfg domain.ProviderConfig) error {
	if err := r.dao.Delete(ctx, cfg.ID); err != nil {
		return err
	}
	r.invalidate(ctx, cfg.TenantID, cfg.Channel)
	return nil
}

func (r *providerConfigRepository) FindByID(ctx context.Context, id int64) (domain.ProviderConfig, error) {
	cfg, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.ProviderConfig{}, err
	}
	return r.toDomain(cfg), nil
}

func (r *providerConfigRepository) FindByTenantChannel(ctx context.Context, tenantID int64, channel domain.ChannelType) ([]domain.ProviderConfig, error) {
	if cfgs, err := r.local.Get(ctx, tenantID, channel); err == nil {
		return cfgs, nil
	}
	if cfgs, err := r.redis.Get(ctx, tenantID, channel); err == nil {
		if err := r.local.Set(ctx, tenantID, channel, cfgs); err != nil {
			r.logger.Warn("回填本地缓存失败", elog.FieldErr(err))
		}
		return cfgs, nil
	} else if !errors.Is(err, cache.ErrKeyNotFound) {
		r.logger.Warn("读取redis缓存失败", elog.FieldErr(err))
	}

	entities, err := r.dao.FindByTenantChannel(ctx, tenantID, channel.String())
	if err != nil {
		return nil, err
	}
	cfgs := slice.Map(entities, func(_ int, src dao.ProviderConfig) domain.ProviderConfig {
		return r.toDomain(src)
	})
	if err := r.redis.Set(ctx, tenantID, channel, cfgs); err != nil {
		r.logger.Warn("回填redis缓存失败", elog.FieldErr(err))
	}
	if err := r.local.Set(ctx, tenantID, channel, cfgs); err != nil {
		r.logger.Warn("回填本地缓存失败", elog.FieldErr(err))
	}
	return cfgs, nil
}

func (r *providerConfigRepository) FindByStatuses(ctx context.Context, statuses []domain.HealthStatus, offset, limit int) ([]domain.ProviderConfig, error) {
	ss := slice.Map(statuses, func(_ int, s domain.HealthStatus) string {
		return s.String()
	})
	entities, err := r.dao.FindByStatuses(ctx, ss, offset, limit)
	if err != nil {
		return nil, err
	}
	return slice.Map(entities, func(_ int, src dao.ProviderConfig) domain.ProviderConfig {
		return r.toDomain(src)
	}), nil
}

func (r *providerConfigRepository) SetDefault(ctx context.Context, cfg domain.ProviderConfig) error {
	if err := r.dao.SetDefault(ctx, cfg.ID); err != nil {
		return err
	}
	r.invalidate(ctx, cfg.TenantID, cfg.Channel)
	return nil
}

func (r *providerConfigRepository) SetActive(ctx context.Context, cfg domain.ProviderConfig, active bool) error {
	if err := r.dao.SetActive(ctx, cfg.ID, active); err != nil {
		return err
	}
	r.invalidate(ctx, cfg.TenantID, cfg.Channel)
	return nil
}

func (r *providerConfigRepository) ReserveQuota(ctx context.Context, cfg domain.ProviderConfig, date string, hour int) (bool, error) {
	// 预占走数据库，不失效缓存：缓存里的计数本来就不作数
	return r.dao.ReserveQuota(ctx, cfg.ID, date, hour)
}

func (r *providerConfigRepository) ReleaseQuota(ctx context.Context, cfg domain.ProviderConfig) error {
	return r.dao.ReleaseQuota(ctx, cfg.ID)
}

func (r *providerConfigRepository) MarkFailure(ctx context.Context, cfg domain.ProviderConfig, message string, threshold int) (domain.HealthStatus, error) {
	status, err := r.dao.MarkFailure(ctx, cfg.ID, message, threshold)
	if err != nil {
		return "", err
	}
	r.invalidate(ctx, cfg.TenantID, cfg.Channel)
	return domain.HealthStatus(status), nil
}

func (r *providerConfigRepository) MarkAuthFailure(ctx context.Context, cfg domain.ProviderConfig, message string) error {
	if err := r.dao.MarkAuthFailure(ctx, cfg.ID, message); err != nil {
		return err
	}
	r.invalidate(ctx, cfg.TenantID, cfg.Channel)
	return nil
}

func (r *providerConfigRepository) MarkSuccess(ctx context.Context, cfg domain.ProviderConfig) error {
	if err := r.dao.MarkSuccess(ctx, cfg.ID); err != nil {
		return err
	}
	r.invalidate(ctx, cfg.TenantID, cfg.Channel)
	return nil
}

func (r *providerConfigRepository) MarkProbeSuccess(ctx context.Context, cfg domain.ProviderConfig) error {
	if err := r.dao.MarkProbeSuccess(ctx, cfg.ID); err != nil {
		return err
	}
	r.invalidate(ctx, cfg.TenantID, cfg.Channel)
	return nil
}

func (r *providerConfigRepository) invalidate(ctx context.Context, tenantID int64, channel domain.ChannelType) {
	if err := r.local.Del(ctx, tenantID, channel); err != nil {
		r.logger.Warn("本地缓存失效失败", elog.FieldErr(err))
	}
	if err := r.redis.Del(ctx, tenantID, channel); err != nil {
		r.logger.Warn("redis缓存失效失败", elog.FieldErr(err))
	}
}

func (r *providerConfigRepository) toDomain(e dao.ProviderConfig) domain.ProviderConfig {
	cfg := domain.ProviderConfig{
		ID:              e.ID,
		TenantID:        e.TenantID,
		Channel:         domain.ChannelType(e.Channel),
		Name:            e.Name,
		Credentials:     e.Credentials,
		IsActive:        e.IsActive,
		IsDefault:       e.IsDefault,
		Priority:        e.Priority,
		Status:          domain.HealthStatus(e.Status),
		ErrorCount:      e.ErrorCount,
		LastError:       e.LastError.String,
		LastHealthCheck: e.LastHealthCheck,
		Ctime:           e.Ctime,
		Utime:           e.Utime,
	}
	switch cfg.Channel {
	case domain.ChannelPayment:
		cfg.Payment = &domain.PaymentPolicy{
			SupportedCurrencies: unmarshalList(e.SupportedCurrencies),
			MinAmount:           e.MinAmount,
			MaxAmount:           e.MaxAmount,
			AllowedCountries:    unmarshalList(e.AllowedCountries),
			BlockedCountries:    unmarshalList(e.BlockedCountries),
		}
	case domain.ChannelEmail:
		cfg.Quota = &domain.QuotaPolicy{
			DailyLimit:    e.DailyLimit,
			HourlyLimit:   e.HourlyLimit,
			SentToday:     e.SentToday,
			SentThisHour:  e.SentThisHour,
			LastResetDate: e.LastResetDate,
			LastResetHour: e.LastResetHour,
		}
	}
	return cfg
}

func (r *providerConfigRepository) toEntity(cfg domain.ProviderConfig) dao.ProviderConfig {
	e := dao.ProviderConfig{
		ID:              cfg.ID,
		TenantID:        cfg.TenantID,
		Channel:         cfg.Channel.String(),
		Name:            cfg.Name,
		Credentials:     cfg.Credentials,
		IsActive:        cfg.IsActive,
		IsDefault:       cfg.IsDefault,
		Priority:        cfg.Priority,
		Status:          cfg.Status.String(),
		ErrorCount:      cfg.ErrorCount,
		LastHealthCheck: cfg.LastHealthCheck,
		Ctime:           cfg.Ctime,
		Utime:           cfg.Utime,
	}
	if cfg.LastError != "" {
		e.LastError = sql.NullString{String: cfg.LastError, Valid: true}
	}
	if cfg.Payment != nil {
		e.SupportedCurrencies = marshalList(cfg.Payment.SupportedCurrencies)
		e.MinAmount = cfg.Payment.MinAmount
		e.MaxAmount = cfg.Payment.MaxAmount
		e.AllowedCountries = marshalList(cfg.Payment.AllowedCountries)
		e.BlockedCountries = marshalList(cfg.Payment.BlockedCountries)
	}
	if cfg.Quota != nil {
		e.DailyLimit = cfg.Quota.DailyLimit
		e.HourlyLimit = cfg.Quota.HourlyLimit
		e.SentToday = cfg.Quota.SentToday
		e.SentThisHour = cfg.Quota.SentThisHour
		e.LastResetDate = cfg.Quota.LastResetDate
		e.LastResetHour = cfg.Quota.LastResetHour
	}
	return e
}

func unmarshalList(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(ns.String), &list); err != nil {
		return nil
	}
	return list
}

func marshalList(list []string) sql.NullString {
	if len(list) == 0 {
		return sql.NullString{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}
