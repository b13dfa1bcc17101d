package service

import (
	"context"
	"fmt"
	"sync"

	"leverage-executor-sol/internal/config"
	"leverage-executor-sol/internal/logic/position"
	"leverage-executor-sol/internal/logic/protocol"
	itypes "leverage-executor-sol/internal/types"
	"leverage-executor-sol/pkg/logger"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/robfig/cron/v3"
)

// Runner 执行单次仓位操作，*position.Executor 满足该接口
type Runner interface {
	Execute(ctx context.Context, signer types.Account, op protocol.Operation) (*position.Report, error)
}

// PositionService 按 cron 表达式周期执行配置中的仓位操作；
// 表达式为空时只在启动时执行一轮。上一轮未结束时跳过本轮。
type PositionService struct {
	runner   Runner
	signer   types.Account
	targets  []protocol.Operation
	schedule string

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func NewPositionService(runner Runner, signer types.Account, cfg config.PositionConfig) (*PositionService, error) {
	targets := make([]protocol.Operation, 0, len(cfg.Targets))
	for i := range cfg.Targets {
		op, err := cfg.Targets[i].ToOperation()
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		op.Wallet = signer.PublicKey
		targets = append(targets, op)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &PositionService{
		runner:   runner,
		signer:   signer,
		targets:  targets,
		schedule: cfg.Schedule,
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.Schedule != "" {
		l := cronLogger{}
		s.cron = cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
			cron.WithLogger(l),
		)
		if _, err := s.cron.AddFunc(cfg.Schedule, func() { s.RunOnce(s.ctx) }); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
		}
	}
	return s, nil
}

// Start 阻塞运行直到 Stop
func (s *PositionService) Start() {
	logger.Infof("[PositionService] 启动: wallet=%s, targets=%d, schedule=%q",
		itypes.ShortKey(s.signer.PublicKey), len(s.targets), s.schedule)
	if s.cron == nil {
		s.RunOnce(s.ctx)
		<-s.ctx.Done()
		return
	}
	s.cron.Run()
}

func (s *PositionService) Stop() {
	s.once.Do(func() {
		s.cancel()
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		logger.Infof("[PositionService] 已停止")
	})
}

// RunOnce 顺序执行全部目标操作，返回失败数
func (s *PositionService) RunOnce(ctx context.Context) int {
	failed := 0
	for _, op := range s.targets {
		if ctx.Err() != nil {
			return failed
		}
		if _, err := s.runner.Execute(ctx, s.signer, op); err != nil {
			failed++
			continue
		}
	}
	if failed > 0 {
		logger.Warnf("[PositionService] 本轮完成: total=%d, failed=%d", len(s.targets), failed)
	}
	return failed
}

// cronLogger 将 cron 的日志转到 pkg/logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debugf("[cron] %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Errorf("[cron] %s: %v %v", msg, err, keysAndValues)
}
