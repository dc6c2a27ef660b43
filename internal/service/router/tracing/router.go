package tracing

import (
	"context"
	"strconv"

	"gitee.com/flycash/channel-gateway/internal/domain"
	"gitee.com/flycash/channel-gateway/internal/service/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Router 为路由器实现添加链路追踪的装饰器
type Router struct {
	router router.Router
	tracer trace.Tracer
}

// NewRouter 创建一个新的带有链路追踪的路由器
func NewRouter(r router.Router) *Router {
	return &Router{
		router: r,
		tracer: otel.Tracer("channel-gateway/router"),
	}
}

func (t *Router) Resolve(ctx context.Context, req domain.ResolveRequest) (domain.Resolution, error) {
	ctx, span := t.tracer.Start(ctx, "Router.Resolve",
		trace.WithAttributes(
			attribute.String("tenant.id", strconv.FormatInt(req.TenantID, 10)),
			attribute.String("channel", req.Channel.String()),
		))
	defer span.End()

	res, err := t.router.Resolve(ctx, req)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("config.id", strconv.FormatInt(res.Config.ID, 10)),
			attribute.String("provider", res.Config.Name),
		)
	}

	return res, err
}

func (t *Router) RecordOutcome(ctx context.Context, configID int64, out domain.Outcome) error {
	ctx, span := t.tracer.Start(ctx, "Router.RecordOutcome",
		trace.WithAttributes(
			attribute.String("config.id", strconv.FormatInt(configID, 10)),
			attribute.Bool("success", out.Success),
		))
	defer span.End()

	err := t.router.RecordOutcome(ctx, configID, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (t *Router) NewChain(req domain.ResolveRequest) router.Chain {
	return t.router.NewChain(req)
}
