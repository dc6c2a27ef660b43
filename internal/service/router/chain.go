package router

import (
	"context"
	"fmt"
	"sync"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/errs"
)

// maxChainAttempts 一条链最多尝试的次数上限
const maxChainAttempts = 5

// chain 有界故障转移尝试链
// 候选集在第一次Next时装配一次，整条链内保持稳定
type chain struct {
	mu sync.Mutex

	r   *router
	req domain.ResolveRequest

	loaded      bool
	cands       []domain.ProviderConfig
	maxAttempts int

	attempts int
	lastID   int64
	excluded map[int64]bool
}

func newChain(r *router, req domain.ResolveRequest) *chain {
	return &chain{
		r:        r,
		req:      req,
		excluded: make(map[int64]bool),
	}
}

func (c *chain) Next(ctx context.Context) (domain.Resolution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		cands, err := c.r.candidates(ctx, c.req)
		if err != nil {
			return domain.Resolution{}, err
		}
		c.cands = cands
		c.maxAttempts = len(cands)
		if c.maxAttempts > maxChainAttempts {
			c.maxAttempts = maxChainAttempts
		}
		c.loaded = true
	}

	if c.attempts >= c.maxAttempts {
		return domain.Resolution{}, fmt.Errorf("%w: %w", errs.ErrNoAvailableProvider, errs.ErrAttemptExhausted)
	}

	res, err := c.r.pick(ctx, c.cands, c.excluded)
	if err != nil {
		return domain.Resolution{}, err
	}

	c.attempts++
	c.lastID = res.Config.ID
	return res, nil
}

func (c *chain) Report(ctx context.Context, out domain.Outcome) error {
	c.mu.Lock()
	if c.lastID == 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: 本条链还没有返回过配置", errs.ErrInvalidParameter)
	}
	id := c.lastID
	if !out.Success {
		// 同一条链内不再返回刚失败的配置
		c.excluded[id] = true
	}
	c.mu.Unlock()

	return c.r.RecordOutcome(ctx, id, out)
}
