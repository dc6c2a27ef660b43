package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"gitee.com/flycash/channel-gateway/cmd/gateway/ioc"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/core/elog"
	"gopkg.in/yaml.v2"
)

func main() {
	f, err := os.Open("config/config.yaml")
	if err != nil {
		elog.Panic("打开配置文件失败", elog.FieldErr(err))
	}
	if err := econf.LoadFromReader(f, yaml.Unmarshal); err != nil {
		elog.Panic("加载配置失败", elog.FieldErr(err))
	}
	_ = f.Close()

	app := ioc.InitApp()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	app.StartTasks(ctx)

	elog.Info("channel-gateway 已启动")
	<-ctx.Done()
	elog.Info("channel-gateway 退出")
}
