package ioc

import (
	"context"

	prodioc "gitee.com/flycash/channel-gateway/internal/ioc"
	"gitee.com/flycash/channel-gateway/internal/repository"
	"gitee.com/flycash/channel-gateway/internal/service/health"
	managesvc "gitee.com/flycash/channel-gateway/internal/service/manage"
	routersvc "gitee.com/flycash/channel-gateway/internal/service/router"
)

type App struct {
	Tasks []prodioc.Task

	Router routersvc.Router

	ManageSvc managesvc.Service

	Monitor health.Monitor

	Repo repository.ProviderConfigRepository
}

func (a *App) StartTasks(ctx context.Context) {
	for _, t := range a.Tasks {
		go func(t prodioc.Task) {
			t.Start(ctx)
		}(t)
	}
}
