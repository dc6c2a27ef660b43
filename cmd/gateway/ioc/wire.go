//go:build wireinject

package ioc

import (
	"gitee.com/flycash/channel-gateway/internal/event/failover"
	prodioc "gitee.com/flycash/channel-gateway/internal/ioc"
	"gitee.com/flycash/channel-gateway/internal/pkg/vault"
	"gitee.com/flycash/channel-gateway/internal/repository"
	localcache "gitee.com/flycash/channel-gateway/internal/repository/cache/local"
	rediscache "gitee.com/flycash/channel-gateway/internal/repository/cache/redis"
	"gitee.com/flycash/channel-gateway/internal/repository/dao"
	"gitee.com/flycash/channel-gateway/internal/service/health"
	managesvc "gitee.com/flycash/channel-gateway/internal/service/manage"
	"gitee.com/flycash/channel-gateway/internal/service/quota"
	routersvc "gitee.com/flycash/channel-gateway/internal/service/router"
	routermetrics "gitee.com/flycash/channel-gateway/internal/service/router/metrics"
	routertracing "gitee.com/flycash/channel-gateway/internal/service/router/tracing"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

var (
	baseSet = wire.NewSet(
		prodioc.InitDB,
		prodioc.InitRedisClient,
		prodioc.InitDistributedLock,
		prodioc.InitIDGenerator,
		prodioc.InitMQ,
		prodioc.InitFailoverProducer,
		prodioc.InitProberRegistry,
		// 加密密钥
		prodioc.InitVault,
	)
	repoSet = wire.NewSet(
		dao.NewProviderConfigDAO,
		newProviderConfigRepository,
	)
	routerSvcSet = wire.NewSet(
		quota.NewTracker,
		health.NewMonitor,
		newRouter,
	)
	manageSvcSet = wire.NewSet(
		managesvc.NewService,
	)
	taskSet = wire.NewSet(
		health.NewSweepTask,
		prodioc.InitTasks,
	)
)

func newProviderConfigRepository(d dao.ProviderConfigDAO, rdb *redis.Client) repository.ProviderConfigRepository {
	return repository.NewProviderConfigRepository(d, localcache.NewCache(), rediscache.NewCache(rdb))
}

// newRouter 由内到外套上指标与链路装饰器
func newRouter(
	repo repository.ProviderConfigRepository,
	tracker quota.Tracker,
	monitor health.Monitor,
	v *vault.Vault,
	producer failover.EventProducer,
) routersvc.Router {
	return routertracing.NewRouter(routermetrics.NewRouter(routersvc.NewRouter(repo, tracker, monitor, v, producer)))
}

func InitApp() *App {
	wire.Build(
		baseSet,
		repoSet,
		routerSvcSet,
		manageSvcSet,
		taskSet,
		wire.Struct(new(App), "*"),
	)
	return new(App)
}
