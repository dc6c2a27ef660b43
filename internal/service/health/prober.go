package health

import (
	"context"
	"fmt"
	"sync"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/errs"
)

// Prober 供应商侧的非破坏性握手
// 具体协议由各供应商适配器实现，网关只关心成败
// 认证被拒时实现方应返回包装了errs.ErrCredential的错误，触发快速熔断
//
//go:generate mockgen -source=./prober.go -destination=./mocks/prober.mock.go -package=healthmocks -typed Prober
type Prober interface {
	Probe(ctx context.Context, cfg domain.ProviderConfig, credentials string) error
}

// Registry 按供应商名称注册探测实现，渠道级实现作为兜底
type Registry struct {
	mu       sync.RWMutex
	probers  map[string]Prober
	channels map[domain.ChannelType]Prober
}

func NewRegistry() *Registry {
	return &Registry{
		probers:  make(map[string]Prober),
		channels: make(map[domain.ChannelType]Prober),
	}
}

// Register 注册指定供应商的专属探测实现，优先于渠道兜底
func (r *Registry) Register(name string, p Prober) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probers[name] = p
}

// RegisterChannel 注册渠道级探测实现，对该渠道下未注册专属实现的供应商生效
func (r *Registry) RegisterChannel(channel domain.ChannelType, p Prober) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[channel] = p
}

func (r *Registry) Get(name string, channel domain.ChannelType) (Prober, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.probers[name]; ok {
		return p, nil
	}
	if p, ok := r.channels[channel]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: 未注册探测实现 %s", errs.ErrInvalidParameter, name)
}
