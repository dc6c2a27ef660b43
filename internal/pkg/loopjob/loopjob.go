package loopjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/meoying/dlock-go"
)

// 没有分布式任务调度平台时，用分布式锁保证一个任务同一时刻只有一个实例在跑

const (
	defaultLockTimeout = 3 * time.Second
	defaultRetryPause  = time.Minute
)

// LockedLoop 抢到分布式锁之后循环执行业务，锁丢失或ctx取消时退出
type LockedLoop struct {
	dclient dlock.Client
	key     string
	biz     func(ctx context.Context) error
	logger  *elog.Component
}

func NewLockedLoop(dclient dlock.Client, biz func(ctx context.Context) error, key string) *LockedLoop {
	return &LockedLoop{
		dclient: dclient,
		key:     key,
		biz:     biz,
		logger:  elog.DefaultLogger.With(elog.String("key", key)),
	}
}

// Run 阻塞运行，ctx取消时返回
func (l *LockedLoop) Run(ctx context.Context) {
	for {
		lock, err := l.dclient.NewLock(ctx, l.key, defaultRetryPause)
		if err != nil {
			l.logger.Error("初始化分布式锁失败", elog.FieldErr(err))
			time.Sleep(defaultRetryPause)
			continue
		}

		lockCtx, cancel := context.WithTimeout(ctx, defaultLockTimeout)
		err = lock.Lock(lockCtx)
		cancel()
		if err != nil {
			// 锁被别的实例持有，等一会再抢
			time.Sleep(defaultRetryPause)
			continue
		}

		err = l.bizLoop(ctx, lock)
		if err != nil {
			l.logger.Error("任务循环中断", elog.FieldErr(err))
		}

		// ctx可能已经被取消，解锁要用新的超时上下文
		unCtx, cancel := context.WithTimeout(context.Background(), defaultLockTimeout)
		//nolint:contextcheck // 原始ctx可能已取消，解锁必须换Background
		if unErr := lock.Unlock(unCtx); unErr != nil {
			l.logger.Error("释放分布式锁失败", elog.FieldErr(unErr))
		}
		cancel()

		switch {
		case errors.Is(ctx.Err(), context.Canceled), errors.Is(ctx.Err(), context.DeadlineExceeded):
			l.logger.Info("任务被取消，退出任务循环")
			return
		default:
			time.Sleep(defaultRetryPause)
		}
	}
}

func (l *LockedLoop) bizLoop(ctx context.Context, lock dlock.Lock) error {
	for {
		if err := l.biz(ctx); err != nil {
			l.logger.Error("业务执行失败", elog.FieldErr(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		refCtx, cancel := context.WithTimeout(ctx, defaultLockTimeout)
		err := lock.Refresh(refCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("分布式锁续约失败 %w", err)
		}
	}
}
