package domain

// ChannelType 出站渠道类型
type ChannelType string

const (
	ChannelPayment ChannelType = "PAYMENT" // 支付网关
	ChannelEmail   ChannelType = "EMAIL"   // SMTP邮件
)

func (c ChannelType) String() string {
	return string(c)
}

// IsValid 是否是已支持的渠道
func (c ChannelType) IsValid() bool {
	return c == ChannelPayment || c == ChannelEmail
}

// HealthStatus 供应商配置健康状态
type HealthStatus string

const (
	HealthStatusTesting  HealthStatus = "TESTING"  // 新建，等待探测
	HealthStatusActive   HealthStatus = "ACTIVE"   // 探测通过，可用
	HealthStatusDegraded HealthStatus = "DEGRADED" // 出现失败但未达阈值，仍可选但降级
	HealthStatusError    HealthStatus = "ERROR"    // 连续失败达阈值，需人工重测
	HealthStatusInactive HealthStatus = "INACTIVE" // 人工停用
)

func (s HealthStatus) String() string {
	return string(s)
}

// Selectable 该状态下是否允许被路由选中
func (s HealthStatus) Selectable() bool {
	return s == HealthStatusActive || s == HealthStatusDegraded
}

// ProviderConfig 供应商配置领域模型
// 每个租户在每个渠道下可以配置多个可互换的供应商
type ProviderConfig struct {
	ID       int64
	TenantID int64
	Channel  ChannelType
	Name     string // 供应商名称，同租户同渠道下唯一

	// Credentials 密封后的凭证密文，只有分发路径才能解封
	Credentials string

	IsActive  bool // 人工开关
	IsDefault bool // 同租户同渠道下至多一个
	Priority  int  // 数字越小优先级越高

	Status          HealthStatus
	ErrorCount      int
	LastError       string
	LastHealthCheck int64 // 毫秒时间戳，0表示从未探测

	Payment *PaymentPolicy // 仅支付渠道
	Quota   *QuotaPolicy   // 仅邮件渠道

	Ctime int64
	Utime int64
}

// Selectable 是否满足进入候选集的前置条件（人工开关 + 健康状态）
// is_active=true 但 status=ERROR 的配置不可选
func (p ProviderConfig) Selectable() bool {
	return p.IsActive && p.Status.Selectable()
}

// PaymentPolicy 支付渠道的请求约束
type PaymentPolicy struct {
	SupportedCurrencies []string `json:"supportedCurrencies"`
	MinAmount           int64    `json:"minAmount"` // 最小金额（最小货币单位），0表示不限
	MaxAmount           int64    `json:"maxAmount"` // 最大金额，0表示不限
	AllowedCountries    []string `json:"allowedCountries"`
	BlockedCountries    []string `json:"blockedCountries"`
}

// Matches 判断支付约束是否满足
func (p PaymentPolicy) Matches(cons PaymentConstraints) bool {
	if cons.Currency != "" && !contains(p.SupportedCurrencies, cons.Currency) {
		return false
	}
	if p.MinAmount > 0 && cons.Amount < p.MinAmount {
		return false
	}
	if p.MaxAmount > 0 && cons.Amount > p.MaxAmount {
		return false
	}
	if cons.Country != "" {
		if contains(p.BlockedCountries, cons.Country) {
			return false
		}
		if len(p.AllowedCountries) > 0 && !contains(p.AllowedCountries, cons.Country) {
			return false
		}
	}
	return true
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

// QuotaPolicy 邮件渠道的配额窗口
type QuotaPolicy struct {
	DailyLimit    int    `json:"dailyLimit"`  // 0表示不限
	HourlyLimit   int    `json:"hourlyLimit"` // 0表示不限
	SentToday     int    `json:"sentToday"`
	SentThisHour  int    `json:"sentThisHour"`
	LastResetDate string `json:"lastResetDate"` // 格式 2006-01-02
	LastResetHour int    `json:"lastResetHour"` // 0-23
}

// PaymentConstraints 支付请求约束
type PaymentConstraints struct {
	Currency string
	Amount   int64
	Country  string
}

// ResolveRequest 一次路由请求
type ResolveRequest struct {
	TenantID int64
	Channel  ChannelType
	Payment  PaymentConstraints // 仅支付渠道有意义
}

// Resolution 路由结果，凭证明文仅供本次外部调用使用
type Resolution struct {
	Config      ProviderConfig
	Credentials string
}

// Outcome 一次外部调用的结果回报
type Outcome struct {
	Success      bool
	AuthRejected bool // 供应商明确拒绝认证，触发快速熔断
	Message      string
}

// HealthCheckResult 探测结果，记录而不抛出
type HealthCheckResult struct {
	Success bool
	Message string
}
