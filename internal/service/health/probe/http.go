package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/errs"
	"github.com/go-resty/resty/v2"
)

// HTTPProber 对支付供应商的健康检查端点做只读握手
// 凭证JSON需要携带endpoint和apiKey，401/403一律按认证被拒处理
type HTTPProber struct {
	client *resty.Client
}

func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		client: resty.New(),
	}
}

type httpCredentials struct {
	Endpoint  string `json:"endpoint"`
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
}

func (p *HTTPProber) Probe(ctx context.Context, _ domain.ProviderConfig, credentials string) error {
	var cred httpCredentials
	if err := json.Unmarshal([]byte(credentials), &cred); err != nil {
		return fmt.Errorf("%w: 凭证格式错误: %w", errs.ErrCredential, err)
	}
	if cred.Endpoint == "" {
		return fmt.Errorf("%w: 凭证缺少endpoint", errs.ErrCredential)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+cred.APIKey).
		Get(cred.Endpoint)
	if err != nil {
		return fmt.Errorf("握手失败: %w", err)
	}
	code := resp.StatusCode()
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return fmt.Errorf("%w: 供应商拒绝认证, 状态码 %d", errs.ErrCredential, code)
	}
	if resp.IsError() {
		return fmt.Errorf("供应商异常, 状态码 %d", code)
	}
	return nil
}
