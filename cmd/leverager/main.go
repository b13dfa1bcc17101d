package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"leverage-executor-sol/internal/config"
	"leverage-executor-sol/internal/service"
	"leverage-executor-sol/internal/svc"
	"leverage-executor-sol/pkg/logger"

	zerosvc "github.com/zeromicro/go-zero/core/service"
	"github.com/zeromicro/go-zero/core/threading"
)

var (
	configFile = flag.String("f", "etc/leverager.yaml", "the config file")
	simulate   = flag.Bool("simulate", false, "print operation plans without touching the network")
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
			logger.Sync()
			os.Exit(1)
		}
	}()

	flag.Parse()

	c := config.MustLoad(*configFile)
	if *simulate {
		c.Position.SimulateOnly = true
	}
	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		panic(err)
	}
	defer logger.Sync()

	serviceContext, err := svc.NewServiceContext(c)
	if err != nil {
		panic(err)
	}
	defer serviceContext.Close()

	positionService, err := service.NewPositionService(serviceContext.Executor, serviceContext.Signer, c.Position)
	if err != nil {
		panic(err)
	}

	sg := zerosvc.NewServiceGroup()
	sg.Add(positionService)
	if c.Metrics.Addr != "" {
		sg.Add(service.NewMetricsService(c.Metrics.Addr, c.Metrics.Path))
	}

	logger.Infof("Starting leverage executor: simulate=%t", c.Position.SimulateOnly)
	threading.GoSafe(sg.Start)

	// 等待退出信号
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Infof("Shutting down services...")
	sg.Stop()
}
