//go:build unit

package manage

import (
	"context"
	"sync"
	"testing"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/errs"
	"gitee.com/flycash/channel-gateway/internal/pkg/vault"
	"gitee.com/flycash/channel-gateway/internal/repository"
	"github.com/sony/sonyflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEncryptKey = "test-encrypt-key-0123456789abcde"

// manageRepo 内存仓储，覆盖管理操作用到的方法
type manageRepo struct {
	repository.ProviderConfigRepository

	mu   sync.Mutex
	cfgs map[int64]*domain.ProviderConfig
}

func newManageRepo(cfgs ...domain.ProviderConfig) *manageRepo {
	r := &manageRepo{cfgs: make(map[int64]*domain.ProviderConfig)}
	for i := range cfgs {
		c := cfgs[i]
		r.cfgs[c.ID] = &c
	}
	return r
}

func (r *manageRepo) get(id int64) domain.ProviderConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.cfgs[id]
}

func (r *manageRepo) Create(_ context.Context, cfg domain.ProviderConfig) (domain.ProviderConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cfgs {
		if c.TenantID == cfg.TenantID && c.Channel == cfg.Channel && c.Name == cfg.Name {
			return domain.ProviderConfig{}, errs.ErrConfigNameDuplicate
		}
	}
	c := cfg
	r.cfgs[c.ID] = &c
	return c, nil
}

func (r *manageRepo) Update(_ context.Context, cfg domain.ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.cfgs[cfg.ID]
	if !ok {
		return errs.ErrConfigNotFound
	}
	if cfg.Credentials == "" {
		cfg.Credentials = existing.Credentials
	}
	*existing = cfg
	return nil
}

func (r *manageRepo) Delete(_ context.Context, cfg domain.ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cfgs, cfg.ID)
	return nil
}

func (r *manageRepo) FindByID(_ context.Context, id int64) (domain.ProviderConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cfgs[id]
	if !ok {
		return domain.ProviderConfig{}, errs.ErrConfigNotFound
	}
	return *c, nil
}

func (r *manageRepo) FindByTenantChannel(_ context.Context, tenantID int64, channel domain.ChannelType) ([]domain.ProviderConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []domain.ProviderConfig
	for _, c := range r.cfgs {
		if c.TenantID == tenantID && c.Channel == channel {
			res = append(res, *c)
		}
	}
	return res, nil
}

func (r *manageRepo) SetDefault(_ context.Context, cfg domain.ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.cfgs[cfg.ID]
	if !ok {
		return errs.ErrConfigNotFound
	}
	if !target.IsActive || target.Status != domain.HealthStatusActive {
		return errs.ErrInvalidConfigState
	}
	for _, c := range r.cfgs {
		if c.TenantID == target.TenantID && c.Channel == target.Channel {
			c.IsDefault = false
		}
	}
	target.IsDefault = true
	return nil
}

func (r *manageRepo) SetActive(_ context.Context, cfg domain.ProviderConfig, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cfgs[cfg.ID]
	if !ok {
		return errs.ErrConfigNotFound
	}
	c.IsActive = active
	if active {
		if c.Status == domain.HealthStatusInactive {
			c.Status = domain.HealthStatusTesting
			c.ErrorCount = 0
		}
	} else {
		c.IsDefault = false
		c.Status = domain.HealthStatusInactive
	}
	return nil
}

// fakeMonitor 记录重测调用
type fakeMonitor struct {
	mu     sync.Mutex
	tested []int64
}

func (m *fakeMonitor) TestConnection(_ context.Context, configID int64) (domain.HealthCheckResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tested = append(m.tested, configID)
	return domain.HealthCheckResult{Success: true, Message: "ok"}, nil
}

func (m *fakeMonitor) RecordSuccess(context.Context, domain.ProviderConfig) error {
	return nil
}

func (m *fakeMonitor) RecordFailure(context.Context, domain.ProviderConfig, domain.Outcome) (domain.HealthStatus, error) {
	return domain.HealthStatusDegraded, nil
}

func newTestService(t *testing.T, repo *manageRepo) (Service, *fakeMonitor, *vault.Vault) {
	t.Helper()
	v := vault.NewVault(testEncryptKey)
	monitor := &fakeMonitor{}
	sf := sonyflake.NewSonyflake(sonyflake.Settings{})
	require.NotNil(t, sf)
	return NewService(repo, v, monitor, sf), monitor, v
}

func validPaymentConfig() domain.ProviderConfig {
	return domain.ProviderConfig{
		TenantID: 1,
		Channel:  domain.ChannelPayment,
		Name:     "stripe",
		Priority: 1,
		Payment: &domain.PaymentPolicy{
			SupportedCurrencies: []string{"USD", "EUR"},
		},
	}
}

func validEmailConfig() domain.ProviderConfig {
	return domain.ProviderConfig{
		TenantID: 1,
		Channel:  domain.ChannelEmail,
		Name:     "sendgrid",
		Priority: 1,
		Quota:    &domain.QuotaPolicy{DailyLimit: 1000, HourlyLimit: 100},
	}
}

func TestCreateConfig(t *testing.T) {
	t.Parallel()
	repo := newManageRepo()
	svc, _, v := newTestService(t, repo)

	created, err := svc.CreateConfig(t.Context(), validPaymentConfig(), `{"apiKey":"sk_test"}`)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	// 新配置必须从TESTING起步，且不启用不默认
	assert.Equal(t, domain.HealthStatusTesting, created.Status)
	assert.False(t, created.IsActive)
	assert.False(t, created.IsDefault)
	// 读取接口拿不到密文
	assert.Empty(t, created.Credentials)

	// 落库的是密文，且能解封回原文
	stored := repo.get(created.ID)
	require.NotEmpty(t, stored.Credentials)
	plain, err := v.Unseal(stored.Credentials)
	require.NoError(t, err)
	assert.Equal(t, `{"apiKey":"sk_test"}`, plain)
}

func TestCreateConfigValidation(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name  string
		cfg   func() domain.ProviderConfig
		creds string
	}{
		{
			name: "租户ID非法",
			cfg: func() domain.ProviderConfig {
				c := validPaymentConfig()
				c.TenantID = 0
				return c
			},
			creds: "{}",
		},
		{
			name: "名称为空",
			cfg: func() domain.ProviderConfig {
				c := validPaymentConfig()
				c.Name = ""
				return c
			},
			creds: "{}",
		},
		{
			name: "渠道不支持",
			cfg: func() domain.ProviderConfig {
				c := validPaymentConfig()
				c.Channel = "SMS"
				return c
			},
			creds: "{}",
		},
		{
			name: "支付渠道缺币种",
			cfg: func() domain.ProviderConfig {
				c := validPaymentConfig()
				c.Payment.SupportedCurrencies = nil
				return c
			},
			creds: "{}",
		},
		{
			name: "金额区间颠倒",
			cfg: func() domain.ProviderConfig {
				c := validPaymentConfig()
				c.Payment.MinAmount = 100
				c.Payment.MaxAmount = 10
				return c
			},
			creds: "{}",
		},
		{
			name: "邮件渠道缺配额",
			cfg: func() domain.ProviderConfig {
				c := validEmailConfig()
				c.Quota = nil
				return c
			},
			creds: "{}",
		},
		{
			name: "凭证为空",
			cfg:  validPaymentConfig,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := newManageRepo()
			svc, _, _ := newTestService(t, repo)
			_, err := svc.CreateConfig(t.Context(), tc.cfg(), tc.creds)
			assert.ErrorIs(t, err, errs.ErrInvalidParameter)
		})
	}
}

func TestCreateConfigDuplicateName(t *testing.T) {
	t.Parallel()
	repo := newManageRepo()
	svc, _, _ := newTestService(t, repo)

	_, err := svc.CreateConfig(t.Context(), validEmailConfig(), "{}")
	require.NoError(t, err)

	_, err = svc.CreateConfig(t.Context(), validEmailConfig(), "{}")
	assert.ErrorIs(t, err, errs.ErrConfigNameDuplicate)
}

func TestUpdateConfigKeepsIdentityAndCredentials(t *testing.T) {
	t.Parallel()
	repo := newManageRepo()
	svc, _, v := newTestService(t, repo)

	created, err := svc.CreateConfig(t.Context(), validEmailConfig(), `{"user":"old"}`)
	require.NoError(t, err)

	update := validEmailConfig()
	update.ID = created.ID
	update.TenantID = 999 // 身份字段，应被忽略
	update.Priority = 7
	require.NoError(t, svc.UpdateConfig(t.Context(), update, ""))

	stored := repo.get(created.ID)
	assert.Equal(t, int64(1), stored.TenantID)
	assert.Equal(t, 7, stored.Priority)
	// 未提供新凭证时旧密文保持不变
	plain, err := v.Unseal(stored.Credentials)
	require.NoError(t, err)
	assert.Equal(t, `{"user":"old"}`, plain)

	require.NoError(t, svc.UpdateConfig(t.Context(), update, `{"user":"new"}`))
	plain, err = v.Unseal(repo.get(created.ID).Credentials)
	require.NoError(t, err)
	assert.Equal(t, `{"user":"new"}`, plain)
}

func TestSetDefaultRequiresActiveStatus(t *testing.T) {
	t.Parallel()
	repo := newManageRepo(domain.ProviderConfig{
		ID:       1,
		TenantID: 1,
		Channel:  domain.ChannelEmail,
		Name:     "sendgrid",
		IsActive: true,
		Status:   domain.HealthStatusTesting,
	})
	svc, _, _ := newTestService(t, repo)

	// 没探测通过的配置不能当默认
	err := svc.SetDefault(t.Context(), 1)
	assert.ErrorIs(t, err, errs.ErrInvalidConfigState)
}

func TestSetDefaultMovesFlag(t *testing.T) {
	t.Parallel()
	repo := newManageRepo(
		domain.ProviderConfig{
			ID: 1, TenantID: 1, Channel: domain.ChannelEmail, Name: "sendgrid",
			IsActive: true, IsDefault: true, Status: domain.HealthStatusActive,
		},
		domain.ProviderConfig{
			ID: 2, TenantID: 1, Channel: domain.ChannelEmail, Name: "mailgun",
			IsActive: true, Status: domain.HealthStatusActive,
		},
	)
	svc, _, _ := newTestService(t, repo)

	require.NoError(t, svc.SetDefault(t.Context(), 2))
	assert.False(t, repo.get(1).IsDefault)
	assert.True(t, repo.get(2).IsDefault)
}

func TestDeactivateThenActivate(t *testing.T) {
	t.Parallel()
	repo := newManageRepo(domain.ProviderConfig{
		ID: 1, TenantID: 1, Channel: domain.ChannelEmail, Name: "sendgrid",
		IsActive: true, IsDefault: true, Status: domain.HealthStatusActive,
	})
	svc, _, _ := newTestService(t, repo)

	require.NoError(t, svc.Deactivate(t.Context(), 1))
	got := repo.get(1)
	assert.False(t, got.IsActive)
	assert.False(t, got.IsDefault)
	assert.Equal(t, domain.HealthStatusInactive, got.Status)

	// 重新启用要从TESTING走探测流程，不能直接回ACTIVE
	require.NoError(t, svc.Activate(t.Context(), 1))
	got = repo.get(1)
	assert.True(t, got.IsActive)
	assert.Equal(t, domain.HealthStatusTesting, got.Status)
}

func TestGetByIDRedactsCredentials(t *testing.T) {
	t.Parallel()
	repo := newManageRepo()
	svc, _, _ := newTestService(t, repo)

	created, err := svc.CreateConfig(t.Context(), validEmailConfig(), `{"user":"u"}`)
	require.NoError(t, err)

	got, err := svc.GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Credentials)

	list, err := svc.ListByTenantChannel(t.Context(), 1, domain.ChannelEmail)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Credentials)
}

func TestTestConnectionDelegates(t *testing.T) {
	t.Parallel()
	repo := newManageRepo()
	svc, monitor, _ := newTestService(t, repo)

	res, err := svc.TestConnection(t.Context(), 42)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []int64{42}, monitor.tested)
}
