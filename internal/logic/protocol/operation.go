package protocol

import (
	"context"
	"errors"
	"fmt"

	"leverage-executor-sol/internal/logic/core"
	"leverage-executor-sol/internal/logic/swap"
	itypes "leverage-executor-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
)

// Kind 仓位操作类型
type Kind string

const (
	KindOpen   Kind = "open"
	KindAdjust Kind = "adjust"
	KindClose  Kind = "close"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindOpen, KindAdjust, KindClose:
		return k, nil
	default:
		return "", fmt.Errorf("unknown operation kind %q", s)
	}
}

// Operation 一次杠杆仓位操作的参数（由上游决策层给出）
type Operation struct {
	ID             string
	Kind           Kind
	Wallet         common.PublicKey
	Market         common.PublicKey
	CollateralMint common.PublicKey
	DebtMint       common.PublicKey
	Amount         uint64  // open: 初始本金（collateral 最小单位）；close: 0 表示全部平仓
	TargetLeverage float64 // open / adjust 的目标杠杆倍数
	SlippageBps    int
}

func (op Operation) Validate() error {
	var zero common.PublicKey
	switch {
	case op.Wallet == zero:
		return errors.New("operation wallet is empty")
	case op.Market == zero:
		return errors.New("operation market is empty")
	case op.CollateralMint == zero || op.DebtMint == zero:
		return errors.New("operation mints are empty")
	case op.CollateralMint == op.DebtMint:
		return errors.New("collateral and debt mint must differ")
	}
	switch op.Kind {
	case KindOpen:
		if op.Amount == 0 {
			return errors.New("open requires a non-zero amount")
		}
		if op.TargetLeverage <= 1 {
			return fmt.Errorf("open requires leverage > 1, got %.2f", op.TargetLeverage)
		}
	case KindAdjust:
		if op.TargetLeverage < 1 {
			return fmt.Errorf("adjust requires leverage >= 1, got %.2f", op.TargetLeverage)
		}
	case KindClose:
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
	if op.SlippageBps < 0 || op.SlippageBps > 10_000 {
		return fmt.Errorf("slippage bps out of range: %d", op.SlippageBps)
	}
	return nil
}

// Batch 需要作为一笔原子交易提交的一组指令
type Batch struct {
	Label        string
	Instructions []core.Instruction
	LookupTables []common.PublicKey
	Obligation   *core.Obligation
}

// InstructionLayer 负责生成协议指令（闪电贷、存借、swap 路由）
type InstructionLayer interface {
	Build(ctx context.Context, op Operation, swapper swap.Provider) ([]Batch, error)
}

// Steps 仅根据参数推导操作步骤，不访问网络，供模拟模式输出计划
func Steps(op Operation) []string {
	switch op.Kind {
	case KindOpen:
		return []string{
			"flash_borrow " + itypes.ShortKey(op.DebtMint),
			"swap " + itypes.ShortKey(op.DebtMint) + " -> " + itypes.ShortKey(op.CollateralMint),
			"deposit " + itypes.ShortKey(op.CollateralMint),
			"borrow " + itypes.ShortKey(op.DebtMint),
			"flash_repay " + itypes.ShortKey(op.DebtMint),
		}
	case KindAdjust:
		return []string{
			"refresh_obligation",
			fmt.Sprintf("rebalance to %.2fx via flash loan", op.TargetLeverage),
		}
	case KindClose:
		return []string{
			"flash_borrow " + itypes.ShortKey(op.DebtMint),
			"repay " + itypes.ShortKey(op.DebtMint),
			"withdraw " + itypes.ShortKey(op.CollateralMint),
			"swap " + itypes.ShortKey(op.CollateralMint) + " -> " + itypes.ShortKey(op.DebtMint),
			"flash_repay " + itypes.ShortKey(op.DebtMint),
		}
	default:
		return nil
	}
}
