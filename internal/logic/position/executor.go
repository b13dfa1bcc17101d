// Package position 编排杠杆仓位操作：生成协议指令 → 逐批构建并压缩交易 → 广播确认 → 发布事件。
package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leverage-executor-sol/internal/logic/core"
	"leverage-executor-sol/internal/logic/protocol"
	"leverage-executor-sol/internal/logic/swap"
	"leverage-executor-sol/internal/logic/txbuilder"
	"leverage-executor-sol/internal/metrics"
	"leverage-executor-sol/internal/mq"
	itypes "leverage-executor-sol/internal/types"
	"leverage-executor-sol/pkg/logger"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/google/uuid"
)

var ErrWalletMismatch = errors.New("signer does not match operation wallet")

// Builder 构建不超过线上字节预算的交易
type Builder interface {
	BuildAndFit(ctx context.Context, req txbuilder.Request) (*txbuilder.Result, error)
}

// Sender 广播交易并等待确认
type Sender interface {
	SendAndConfirm(ctx context.Context, tx types.Transaction) (string, error)
}

type Options struct {
	SimulateOnly     bool          // 只输出计划，不访问网络
	OperationTimeout time.Duration // 单次操作（含全部批次）的超时，0 表示不限制
}

// BatchReport 单批交易的执行结果
type BatchReport struct {
	Label     string
	Signature string
	Size      int
	Attempts  int
	Inline    int // 内联账户数（不含 fee payer 与被调用程序）
	Extended  int // 本批向用户压缩表追加的地址数
}

// Report 一次仓位操作的执行报告
type Report struct {
	ID        string
	Kind      protocol.Kind
	Wallet    common.PublicKey
	Simulated bool
	Steps     []string // 模拟模式下的操作步骤
	Batches   []BatchReport
}

// Executor 顺序执行同一钱包的仓位操作
type Executor struct {
	layer     protocol.InstructionLayer
	swapper   swap.Provider
	builder   Builder
	sender    Sender
	publisher mq.Publisher
	opt       Options

	mu    sync.Mutex
	locks map[common.PublicKey]*sync.Mutex
}

func NewExecutor(layer protocol.InstructionLayer, swapper swap.Provider, builder Builder, sender Sender, publisher mq.Publisher, opt Options) *Executor {
	if publisher == nil {
		publisher = mq.LogPublisher{}
	}
	return &Executor{
		layer:     layer,
		swapper:   swapper,
		builder:   builder,
		sender:    sender,
		publisher: publisher,
		opt:       opt,
		locks:     make(map[common.PublicKey]*sync.Mutex),
	}
}

func (e *Executor) walletLock(wallet common.PublicKey) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[wallet]
	if !ok {
		l = &sync.Mutex{}
		e.locks[wallet] = l
	}
	return l
}

// Open 开仓
func (e *Executor) Open(ctx context.Context, signer types.Account, op protocol.Operation) (*Report, error) {
	op.Kind = protocol.KindOpen
	return e.Execute(ctx, signer, op)
}

// Adjust 调整杠杆
func (e *Executor) Adjust(ctx context.Context, signer types.Account, op protocol.Operation) (*Report, error) {
	op.Kind = protocol.KindAdjust
	return e.Execute(ctx, signer, op)
}

// Close 平仓
func (e *Executor) Close(ctx context.Context, signer types.Account, op protocol.Operation) (*Report, error) {
	op.Kind = protocol.KindClose
	return e.Execute(ctx, signer, op)
}

// Execute 执行一次仓位操作。失败时返回 "position operation failed: <reason>"。
// 已确认的批次不会回滚，Report 中保留已完成批次。
func (e *Executor) Execute(ctx context.Context, signer types.Account, op protocol.Operation) (*Report, error) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.Wallet == (common.PublicKey{}) {
		op.Wallet = signer.PublicKey
	}
	report := &Report{ID: op.ID, Kind: op.Kind, Wallet: op.Wallet}

	lock := e.walletLock(op.Wallet)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	err := e.run(ctx, signer, op, report)
	metrics.ObservePosition(string(op.Kind), time.Since(start).Seconds(), err)

	wallet := itypes.ShortKey(op.Wallet)
	if err != nil {
		err = fmt.Errorf("position operation failed: %w", err)
		logger.Errorf("[Position] %s %s %s: %v", wallet, op.Kind, op.ID, err)
		e.publish(op, report, core.EventPositionFailed, err)
		return report, err
	}

	if report.Simulated {
		logger.Infof("[Position] %s %s %s: 模拟完成, steps=%d", wallet, op.Kind, op.ID, len(report.Steps))
		e.publish(op, report, core.EventPositionSimulated, nil)
		return report, nil
	}
	logger.Infof("[Position] %s %s %s: 完成, batches=%d, 耗时=%v", wallet, op.Kind, op.ID, len(report.Batches), time.Since(start))
	e.publish(op, report, core.EventPositionSucceeded, nil)
	return report, nil
}

func (e *Executor) run(ctx context.Context, signer types.Account, op protocol.Operation, report *Report) error {
	if err := op.Validate(); err != nil {
		return err
	}
	if signer.PublicKey != op.Wallet {
		return fmt.Errorf("%w: %s", ErrWalletMismatch, itypes.ShortKey(signer.PublicKey))
	}

	if e.opt.SimulateOnly {
		report.Simulated = true
		report.Steps = protocol.Steps(op)
		return nil
	}

	if e.opt.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opt.OperationTimeout)
		defer cancel()
	}

	batches, err := e.layer.Build(ctx, op, e.swapper)
	if err != nil {
		return fmt.Errorf("build instructions: %w", err)
	}
	if len(batches) == 0 {
		return errors.New("instruction layer returned no batches")
	}

	for i, b := range batches {
		res, err := e.builder.BuildAndFit(ctx, txbuilder.Request{
			Payer:        signer,
			Instructions: b.Instructions,
			LookupTables: b.LookupTables,
			Obligation:   b.Obligation,
		})
		if err != nil {
			return fmt.Errorf("batch %d (%s): %w", i, b.Label, err)
		}
		if res.Extended > 0 {
			e.publishTableExtended(op, res)
		}
		sig, err := e.sender.SendAndConfirm(ctx, res.Transaction)
		if err != nil {
			return fmt.Errorf("batch %d (%s): %w", i, b.Label, err)
		}
		report.Batches = append(report.Batches, BatchReport{
			Label:     b.Label,
			Signature: sig,
			Size:      res.Size,
			Attempts:  res.Attempts,
			Inline:    res.Stats.InlineAccounts,
			Extended:  res.Extended,
		})
		logger.Infof("[Position] %s batch %d/%d (%s) 已确认: sig=%s, size=%d, attempts=%d",
			itypes.ShortKey(op.Wallet), i+1, len(batches), b.Label, sig, res.Size, res.Attempts)
	}
	return nil
}

func (e *Executor) publish(op protocol.Operation, report *Report, typ core.PositionEventType, cause error) {
	ev := newEvent(op, typ)
	for _, b := range report.Batches {
		ev.Signatures = append(ev.Signatures, b.Signature)
		ev.TxSizes = append(ev.TxSizes, b.Size)
		if b.Attempts > ev.Attempts {
			ev.Attempts = b.Attempts
		}
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	e.send(ev)
}

func (e *Executor) publishTableExtended(op protocol.Operation, res *txbuilder.Result) {
	ev := newEvent(op, core.EventTableExtended)
	ev.Attempts = res.Attempts
	ev.TxSizes = []int{res.Size}
	e.send(ev)
}

// send 事件发布失败只记录日志，不影响操作结果
func (e *Executor) send(ev *core.PositionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.publisher.Publish(ctx, ev); err != nil {
		logger.Warnf("[Position] 事件发布失败: id=%s, type=%s: %v", ev.ID, ev.Type, err)
	}
}

func newEvent(op protocol.Operation, typ core.PositionEventType) *core.PositionEvent {
	wallet := op.Wallet
	return &core.PositionEvent{
		ID:        op.ID,
		Type:      typ,
		Wallet:    wallet[:],
		Kind:      string(op.Kind),
		Market:    op.Market.ToBase58(),
		Timestamp: time.Now(),
	}
}
