package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/channel-gateway/internal/errs"
	"github.com/ego-component/egorm"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProviderConfig 供应商配置表
// 单表多态：支付、邮件渠道共用一张表，按channel区分
type ProviderConfig struct {
	ID       int64  `gorm:"primaryKey;comment:'雪花算法ID'"`
	TenantID int64  `gorm:"type:BIGINT;NOT NULL;uniqueIndex:idx_tenant_channel_name,priority:1;index:idx_tenant_channel;comment:'租户ID'"`
	Channel  string `gorm:"type:ENUM('PAYMENT','EMAIL');NOT NULL;uniqueIndex:idx_tenant_channel_name,priority:2;index:idx_tenant_channel;comment:'渠道类型'"`
	Name     string `gorm:"type:VARCHAR(64);NOT NULL;uniqueIndex:idx_tenant_channel_name,priority:3;comment:'供应商名称'"`

	Credentials string `gorm:"type:VARCHAR(2048);NOT NULL;comment:'凭证，AES-GCM密文'"`

	IsActive  bool `gorm:"NOT NULL;DEFAULT:0;comment:'人工开关'"`
	IsDefault bool `gorm:"NOT NULL;DEFAULT:0;comment:'是否默认，同租户同渠道至多一个'"`
	Priority  int  `gorm:"type:INT;NOT NULL;DEFAULT:100;comment:'优先级，数字越小越先'"`

	Status          string         `gorm:"type:ENUM('TESTING','ACTIVE','DEGRADED','ERROR','INACTIVE');NOT NULL;DEFAULT:'TESTING';comment:'健康状态'"`
	ErrorCount      int            `gorm:"type:INT;NOT NULL;DEFAULT:0;comment:'连续失败计数'"`
	LastError       sql.NullString `gorm:"type:VARCHAR(512);comment:'最近一次错误信息'"`
	LastHealthCheck int64          `gorm:"type:BIGINT;NOT NULL;DEFAULT:0;comment:'最近一次探测毫秒时间戳'"`

	// 支付渠道约束
	SupportedCurrencies sql.NullString `gorm:"type:JSON;comment:'[\"EUR\",\"USD\"]'"`
	MinAmount           int64          `gorm:"type:BIGINT;NOT NULL;DEFAULT:0;comment:'最小金额，0不限'"`
	MaxAmount           int64          `gorm:"type:BIGINT;NOT NULL;DEFAULT:0;comment:'最大金额，0不限'"`
	AllowedCountries    sql.NullString `gorm:"type:JSON"`
	BlockedCountries    sql.NullString `gorm:"type:JSON"`

	// 邮件渠道配额窗口
	DailyLimit    int    `gorm:"type:INT;NOT NULL;DEFAULT:0;comment:'每日限额，0不限'"`
	HourlyLimit   int    `gorm:"type:INT;NOT NULL;DEFAULT:0;comment:'每小时限额，0不限'"`
	SentToday     int    `gorm:"type:INT;NOT NULL;DEFAULT:0"`
	SentThisHour  int    `gorm:"type:INT;NOT NULL;DEFAULT:0"`
	LastResetDate string `gorm:"type:VARCHAR(10);NOT NULL;DEFAULT:'';comment:'格式2006-01-02'"`
	LastResetHour int    `gorm:"type:INT;NOT NULL;DEFAULT:0"`

	Ctime int64
	Utime int64
}

// TableName 重命名表
func (ProviderConfig) TableName() string {
	return "provider_configs"
}

type ProviderConfigDAO interface {
	// Create 创建供应商配置，同租户同渠道重名返回错误
	Create(ctx context.Context, cfg ProviderConfig) (ProviderConfig, error)
	// Update 更新基本信息与约束，不触碰健康和配额计数字段
	Update(ctx context.Context, cfg ProviderConfig) error
	// Delete 删除配置，如删除的是默认配置则顺延指定新默认
	Delete(ctx context.Context, id int64) error
	// FindByID 根据ID查找
	FindByID(ctx context.Context, id int64) (ProviderConfig, error)
	// FindByTenantChannel 查找租户在指定渠道下的全部配置
	FindByTenantChannel(ctx context.Context, tenantID int64, channel string) ([]ProviderConfig, error)
	// FindByStatuses 按健康状态分页查找，供后台探测任务使用
	FindByStatuses(ctx context.Context, statuses []string, offset, limit int) ([]ProviderConfig, error)

	// SetDefault 事务性换默认：清掉同租户同渠道其他默认，再设置目标
	SetDefault(ctx context.Context, id int64) error
	// SetActive 人工启停。停用默认配置时顺延新默认
	SetActive(ctx context.Context, id int64, active bool) error

	// ReserveQuota 窗口重置 + 条件自增，单条UPDATE保证并发下不超限
	ReserveQuota(ctx context.Context, id int64, date string, hour int) (bool, error)
	// ReleaseQuota 归还一次预占，下限为0
	ReleaseQuota(ctx context.Context, id int64) error

	// MarkFailure 记录一次失败，达到阈值进入ERROR，返回更新后的状态
	MarkFailure(ctx context.Context, id int64, message string, threshold int) (string, error)
	// MarkAuthFailure 认证失败快速路径，无视阈值直接进入ERROR
	MarkAuthFailure(ctx context.Context, id int64, message string) error
	// MarkSuccess 记录一次成功，DEGRADED恢复为ACTIVE，ERROR保持不变
	MarkSuccess(ctx context.Context, id int64) error
	// MarkProbeSuccess 探测成功，TESTING/ERROR/DEGRADED均回到ACTIVE
	MarkProbeSuccess(ctx context.Context, id int64) error
}

type providerConfigDAO struct {
	db *egorm.Component
}

func NewProviderConfigDAO(db *egorm.Component) ProviderConfigDAO {
	return &providerConfigDAO{db: db}
}

// InitTables 初始化表结构
func InitTables(db *egorm.Component) error {
	return db.AutoMigrate(&ProviderConfig{})
}

func (d *providerConfigDAO) Create(ctx context.Context, cfg ProviderConfig) (ProviderConfig, error) {
	now := time.Now().UnixMilli()
	cfg.Ctime, cfg.Utime = now, now
	if err := d.db.WithContext(ctx).Create(&cfg).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ProviderConfig{}, fmt.Errorf("%w", errs.ErrConfigNameDuplicate)
		}
		return ProviderConfig{}, err
	}
	return cfg, nil
}

// isUniqueConstraintError 检查是否是唯一索引冲突错误
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	me := new(mysql.MySQLError)
	if errors.As(err, &me) {
		const uniqueIndexErrNo uint16 = 1062
		return me.Number == uniqueIndexErrNo
	}
	return false
}

func (d *providerConfigDAO) Update(ctx context.Context, cfg ProviderConfig) error {
	updates := map[string]any{
		"name":                 cfg.Name,
		"priority":             cfg.Priority,
		"supported_currencies": cfg.SupportedCurrencies,
		"min_amount":           cfg.MinAmount,
		"max_amount":           cfg.MaxAmount,
		"allowed_countries":    cfg.AllowedCountries,
		"blocked_countries":    cfg.BlockedCountries,
		"daily_limit":          cfg.DailyLimit,
		"hourly_limit":         cfg.HourlyLimit,
		"utime":                time.Now().UnixMilli(),
	}
	// 凭证为空表示本次不更新凭证
	if cfg.Credentials != "" {
		updates["credentials"] = cfg.Credentials
	}
	res := d.db.WithContext(ctx).Model(&ProviderConfig{}).
		Where("id = ?", cfg.ID).Updates(updates)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return fmt.Errorf("%w", errs.ErrConfigNameDuplicate)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w", errs.ErrConfigNotFound)
	}
	return nil
}

func (d *providerConfigDAO) Delete(ctx context.Context, id int64) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target ProviderConfig
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&target).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w", errs.ErrConfigNotFound)
			}
			return err
		}
		if err := tx.Delete(&ProviderConfig{}, id).Error; err != nil {
			return err
		}
		if target.IsDefault {
			return d.reassignDefault(tx, target.TenantID, target.Channel, id)
		}
		return nil
	})
}

func (d *providerConfigDAO) FindByID(ctx context.Context, id int64) (ProviderConfig, error) {
	var cfg ProviderConfig
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProviderConfig{}, fmt.Errorf("%w", errs.ErrConfigNotFound)
		}
		return ProviderConfig{}, err
	}
	return cfg, nil
}

func (d *providerConfigDAO) FindByTenantChannel(ctx context.Context, tenantID int64, channel string) ([]ProviderConfig, error) {
	var cfgs []ProviderConfig
	err := d.db.WithContext(ctx).
		Where("tenant_id = ? AND channel = ?", tenantID, channel).
		Order("priority ASC, ctime ASC").
		Find(&cfgs).Error
	return cfgs, err
}

func (d *providerConfigDAO) FindByStatuses(ctx context.Context, statuses []string, offset, limit int) ([]ProviderConfig, error) {
	var cfgs []ProviderConfig
	err := d.db.WithContext(ctx).
		Where("status IN ? AND is_active = ?", statuses, true).
		Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&cfgs).Error
	return cfgs, err
}

func (d *providerConfigDAO) SetDefault(ctx context.Context, id int64) error {
	now := time.Now().UnixMilli()
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target ProviderConfig
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&target).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w", errs.ErrConfigNotFound)
			}
			return err
		}
		// 只有人工启用且健康状态为ACTIVE的配置才能成为默认
		if !target.IsActive || target.Status != "ACTIVE" {
			return fmt.Errorf("%w: 目标配置未启用或未就绪", errs.ErrInvalidConfigState)
		}
		err = tx.Model(&ProviderConfig{}).
			Where("tenant_id = ? AND channel = ? AND id <> ? AND is_default = ?",
				target.TenantID, target.Channel, id, true).
			Updates(map[string]any{"is_default": false, "utime": now}).Error
		if err != nil {
			return err
		}
		return tx.Model(&ProviderConfig{}).Where("id = ?", id).
			Updates(map[string]any{"is_default": true, "utime": now}).Error
	})
}

func (d *providerConfigDAO) SetActive(ctx context.Context, id int64, active bool) error {
	now := time.Now().UnixMilli()
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target ProviderConfig
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&target).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w", errs.ErrConfigNotFound)
			}
			return err
		}

		if active {
			updates := map[string]any{"is_active": true, "utime": now}
			// 人工启用后回到TESTING，等待探测通过才能参与路由
			if target.Status == "INACTIVE" {
				updates["status"] = "TESTING"
				updates["error_count"] = 0
			}
			return tx.Model(&ProviderConfig{}).Where("id = ?", id).Updates(updates).Error
		}

		err = tx.Model(&ProviderConfig{}).Where("id = ?", id).Updates(map[string]any{
			"is_active":  false,
			"is_default": false,
			"status":     "INACTIVE",
			"utime":      now,
		}).Error
		if err != nil {
			return err
		}
		if target.IsDefault {
			return d.reassignDefault(tx, target.TenantID, target.Channel, id)
		}
		return nil
	})
}

// reassignDefault 默认配置被停用或删除时，按(priority, ctime)顺延下一个可用配置
// 没有候选时允许该租户暂时没有默认，但绝不允许默认指向不可用配置
func (d *providerConfigDAO) reassignDefault(tx *gorm.DB, tenantID int64, channel string, excludeID int64) error {
	var next ProviderConfig
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND channel = ? AND id <> ? AND is_active = ? AND status = ?",
			tenantID, channel, excludeID, true, "ACTIVE").
		Order("priority ASC, ctime ASC").
		First(&next).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return tx.Model(&ProviderConfig{}).Where("id = ?", next.ID).
		Updates(map[string]any{"is_default": true, "utime": time.Now().UnixMilli()}).Error
}

func (d *providerConfigDAO) ReserveQuota(ctx context.Context, id int64, date string, hour int) (bool, error) {
	now := time.Now().UnixMilli()
	var allowed bool
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 跨天重置日计数
		err := tx.Model(&ProviderConfig{}).
			Where("id = ? AND last_reset_date <> ?", id, date).
			Updates(map[string]any{"sent_today": 0, "last_reset_date": date, "utime": now}).Error
		if err != nil {
			return err
		}
		// 跨小时重置小时计数
		err = tx.Model(&ProviderConfig{}).
			Where("id = ? AND last_reset_hour <> ?", id, hour).
			Updates(map[string]any{"sent_this_hour": 0, "last_reset_hour": hour, "utime": now}).Error
		if err != nil {
			return err
		}
		// 检查加自增必须是同一条语句，两个并发请求不可能都挤过限额
		res := tx.Model(&ProviderConfig{}).
			Where("id = ? AND (daily_limit = 0 OR sent_today < daily_limit) AND (hourly_limit = 0 OR sent_this_hour < hourly_limit)", id).
			Updates(map[string]any{
				"sent_today":     gorm.Expr("`sent_today` + 1"),
				"sent_this_hour": gorm.Expr("`sent_this_hour` + 1"),
				"utime":          now,
			})
		if res.Error != nil {
			return res.Error
		}
		allowed = res.RowsAffected > 0
		return nil
	})
	return allowed, err
}

func (d *providerConfigDAO) ReleaseQuota(ctx context.Context, id int64) error {
	return d.db.WithContext(ctx).Model(&ProviderConfig{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sent_today":     gorm.Expr("IF(`sent_today` > 0, `sent_today` - 1, 0)"),
			"sent_this_hour": gorm.Expr("IF(`sent_this_hour` > 0, `sent_this_hour` - 1, 0)"),
			"utime":          time.Now().UnixMilli(),
		}).Error
}

func (d *providerConfigDAO) MarkFailure(ctx context.Context, id int64, message string, threshold int) (string, error) {
	now := time.Now().UnixMilli()
	var status string
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 单条UPDATE完成计数与状态迁移，并发记录失败不会漏计
		// MySQL的SET从左到右求值，status判断用的是自增后的error_count
		res := tx.Exec(
			"UPDATE `provider_configs` SET `error_count` = `error_count` + 1, "+
				"`status` = IF(`error_count` >= ?, 'ERROR', IF(`status` = 'ACTIVE', 'DEGRADED', `status`)), "+
				"`last_error` = ?, `last_health_check` = ?, `utime` = ? "+
				"WHERE `id` = ? AND `status` <> 'INACTIVE'",
			threshold, message, now, now, id)
		if res.Error != nil {
			return res.Error
		}
		var cfg ProviderConfig
		if err := tx.Select("status").Where("id = ?", id).First(&cfg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w", errs.ErrConfigNotFound)
			}
			return err
		}
		status = cfg.Status
		return nil
	})
	return status, err
}

func (d *providerConfigDAO) MarkAuthFailure(ctx context.Context, id int64, message string) error {
	now := time.Now().UnixMilli()
	return d.db.WithContext(ctx).Model(&ProviderConfig{}).
		Where("id = ? AND status <> ?", id, "INACTIVE").
		Updates(map[string]any{
			"status":            "ERROR",
			"error_count":       gorm.Expr("`error_count` + 1"),
			"last_error":        message,
			"last_health_check": now,
			"utime":             now,
		}).Error
}

func (d *providerConfigDAO) MarkSuccess(ctx context.Context, id int64) error {
	// ERROR不参与恢复，必须人工重测
	return d.db.WithContext(ctx).Model(&ProviderConfig{}).
		Where("id = ? AND status IN ?", id, []string{"ACTIVE", "DEGRADED"}).
		Updates(map[string]any{
			"error_count": 0,
			"last_error":  nil,
			"status":      "ACTIVE",
			"utime":       time.Now().UnixMilli(),
		}).Error
}

func (d *providerConfigDAO) MarkProbeSuccess(ctx context.Context, id int64) error {
	now := time.Now().UnixMilli()
	res := d.db.WithContext(ctx).Model(&ProviderConfig{}).
		Where("id = ? AND status <> ?", id, "INACTIVE").
		Updates(map[string]any{
			"status":            "ACTIVE",
			"error_count":       0,
			"last_error":        nil,
			"last_health_check": now,
			"utime":             now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w", errs.ErrConfigNotFound)
	}
	return nil
}
