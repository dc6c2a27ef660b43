package ioc

import (
	"context"

	"gitee.com/flycash/channel-gateway/internal/service/health"
)

type Task interface {
	Start(ctx context.Context)
}

func InitTasks(t1 *health.SweepTask) []Task {
	return []Task{
		t1,
	}
}
