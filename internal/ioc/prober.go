package ioc

import (
	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/service/health"
	"gitee.com/flycash/channel-gateway/internal/service/health/probe"
)

// InitProberRegistry 注册渠道级探测实现
// 供应商专属实现可以在启动后通过Register覆盖
func InitProberRegistry() *health.Registry {
	registry := health.NewRegistry()
	registry.RegisterChannel(domain.ChannelPayment, probe.NewHTTPProber())
	registry.RegisterChannel(domain.ChannelEmail, probe.NewSMTPProber())
	return registry
}
