package swap

import (
	"context"

	"leverage-executor-sol/internal/logic/core"

	"github.com/blocto/solana-go-sdk/common"
)

// Mode 报价模式
type Mode string

const (
	ModeExactIn  Mode = "ExactIn"
	ModeExactOut Mode = "ExactOut"
)

// QuoteRequest 报价请求
type QuoteRequest struct {
	InputMint   common.PublicKey
	OutputMint  common.PublicKey
	Amount      uint64
	SlippageBps int
	Mode        Mode
	MaxAccounts int // 限制路由涉及的账户数，0 表示不限制
}

// Quote 报价结果。Raw 保留聚合器原始响应，换取指令时原样回传。
type Quote struct {
	InputMint      common.PublicKey
	OutputMint     common.PublicKey
	InAmount       uint64
	OutAmount      uint64
	OtherAmount    uint64 // 滑点保护阈值
	PriceImpactPct float64
	Raw            []byte
}

// Instructions swap 所需指令与其路由使用的 lookup table
type Instructions struct {
	Setup        []core.Instruction
	Swap         core.Instruction
	Cleanup      []core.Instruction
	LookupTables []common.PublicKey
}

// All 按执行顺序返回全部指令
func (s *Instructions) All() []core.Instruction {
	out := make([]core.Instruction, 0, len(s.Setup)+len(s.Cleanup)+1)
	out = append(out, s.Setup...)
	out = append(out, s.Swap)
	out = append(out, s.Cleanup...)
	return out
}

// Provider 报价与路由提供方
type Provider interface {
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
	SwapInstructions(ctx context.Context, quote *Quote, user common.PublicKey) (*Instructions, error)
}
