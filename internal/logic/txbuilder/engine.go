package txbuilder

import (
	"context"
	"errors"
	"fmt"

	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/logic/compressor"
	"leverage-executor-sol/internal/logic/core"
	"leverage-executor-sol/internal/logic/normalizer"
	"leverage-executor-sol/internal/logic/patcher"
	"leverage-executor-sol/internal/metrics"
	itypes "leverage-executor-sol/internal/types"
	"leverage-executor-sol/pkg/logger"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/compute_budget"
	"github.com/blocto/solana-go-sdk/types"
)

// maxAttempts 首次尝试 + 扩表后的一次重试
const maxAttempts = 2

// TableManager 用户压缩表与外部 lookup table 的读写能力
type TableManager interface {
	ReadTables(ctx context.Context, addrs []common.PublicKey) ([]*core.LookupTable, error)
	Active(ctx context.Context, owner common.PublicKey) (*core.LookupTable, error)
	Ensure(ctx context.Context, owner types.Account, seed []common.PublicKey) (*core.LookupTable, error)
	Extend(ctx context.Context, owner types.Account, table *core.LookupTable, addrs []common.PublicKey) (*core.LookupTable, error)
}

// BlockhashSource 提供最新 blockhash
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (string, error)
}

// Options 引擎配置
type Options struct {
	WireBudget     int              // 默认 consts.WireBudget
	LendingProgram common.PublicKey // refresh_obligation 所属程序，默认 Kamino Lend
	DisableUserLUT bool             // 关闭用户压缩表（仅使用外部表）

	// 为 0 时不追加；指令中已有 compute budget 指令时以上游为准
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64 // micro-lamports / CU
}

// Request 一笔交易的构建请求
type Request struct {
	Payer        types.Account
	Instructions []core.Instruction
	LookupTables []common.PublicKey // 外部表，如 swap 路由返回的表
	Obligation   *core.Obligation   // 为 nil 时跳过 refresh_obligation 补丁
}

// Result 构建成功的交易
type Result struct {
	Transaction types.Transaction
	Raw         []byte
	Size        int
	Attempts    int
	Stats       compressor.Stats
	UserTable   *core.LookupTable
	Extended    int // 本次构建新写入用户表的地址数（含首次建表的种子）
}

// Engine 将指令组装为不超过线上字节预算的已签名 v0 交易
type Engine struct {
	tables TableManager
	chain  BlockhashSource
	opt    Options
}

func NewEngine(tables TableManager, chain BlockhashSource, opt Options) *Engine {
	if opt.WireBudget <= 0 {
		opt.WireBudget = consts.WireBudget
	}
	if opt.LendingProgram == (common.PublicKey{}) {
		opt.LendingProgram = consts.KaminoLendProgram
	}
	return &Engine{tables: tables, chain: chain, opt: opt}
}

// BuildAndFit 规范化 → 补丁 → 编译 → 签名 → 尺寸校验。
// 首次超限时将未覆盖账户写入用户表（无表则以其为种子建表，有表则扩表）后重试一次；
// 建表 / 扩表失败则降级为不使用用户表重试。
func (e *Engine) BuildAndFit(ctx context.Context, req Request) (*Result, error) {
	payer := req.Payer.PublicKey
	wallet := itypes.ShortKey(payer)
	e.logPhase(wallet, PhaseBuilding, "instructions=%d, external_tables=%d, downgrades=%d, refresh=%d",
		len(req.Instructions), len(req.LookupTables),
		normalizer.CountDowngrades(req.Instructions, payer), patcher.CountRefresh(req.Instructions, e.opt.LendingProgram))

	ixs := normalizer.NormalizeSigners(req.Instructions, payer)
	if req.Obligation != nil {
		patched, err := patcher.PatchRefreshObligation(ixs, req.Obligation, e.opt.LendingProgram)
		if err != nil {
			if !errors.Is(err, patcher.ErrPatchSkipped) {
				return nil, e.fail(err)
			}
			logger.Warnf("[Engine] %s: %v", wallet, err)
		}
		ixs = patched
	}
	ixs = e.withComputeBudget(ixs)

	external, err := e.tables.ReadTables(ctx, req.LookupTables)
	if err != nil {
		return nil, e.fail(err)
	}

	draft := &core.Draft{FeePayer: payer, Instructions: ixs, Tables: external}

	var userTable *core.LookupTable
	if !e.opt.DisableUserLUT {
		userTable, err = e.tables.Active(ctx, payer)
		if err != nil {
			logger.Warnf("[Engine] %s: 读取用户压缩表失败，不使用用户表继续: %v", wallet, err)
			userTable = nil
		}
	}

	extended := 0
	var last *OversizeError
	for attempt := 0; attempt < maxAttempts; attempt++ {
		draft.Tables = candidateTables(external, userTable)

		blockhash, err := e.chain.LatestBlockhash(ctx)
		if err != nil {
			return nil, e.fail(fmt.Errorf("get latest blockhash: %w", err))
		}
		draft.RecentBlockhash = blockhash

		compiled, err := compressor.Compile(draft)
		if err != nil {
			metrics.BuildAttempts.WithLabelValues("error").Inc()
			return nil, e.fail(err)
		}
		// 超限的消息不签名
		size, err := compressor.EstimateSize(compiled)
		if err != nil {
			metrics.BuildAttempts.WithLabelValues("error").Inc()
			return nil, e.fail(fmt.Errorf("estimate transaction size: %w", err))
		}

		metrics.TransactionSize.Observe(float64(size))
		metrics.InlineAccounts.Observe(float64(compiled.Stats.InlineAccounts))
		e.logPhase(wallet, PhaseFitting, "attempt=%d, size=%d, static=%d, inline=%d, looked_up=%d, tables=%d",
			attempt+1, size, compiled.Stats.StaticKeys, compiled.Stats.InlineAccounts, compiled.Stats.LookedUp, compiled.Stats.TablesUsed)

		if size <= e.opt.WireBudget {
			tx, raw, err := compressor.Serialize(compiled, req.Payer)
			if err != nil {
				metrics.BuildAttempts.WithLabelValues("error").Inc()
				return nil, e.fail(err)
			}
			metrics.BuildAttempts.WithLabelValues("fit").Inc()
			metrics.BuildResults.WithLabelValues("success").Inc()
			e.logPhase(wallet, PhaseSuccess, "size=%d, attempts=%d", len(raw), attempt+1)
			return &Result{
				Transaction: tx,
				Raw:         raw,
				Size:        len(raw),
				Attempts:    attempt + 1,
				Stats:       compiled.Stats,
				UserTable:   userTable,
				Extended:    extended,
			}, nil
		}

		metrics.BuildAttempts.WithLabelValues("oversize").Inc()
		last = &OversizeError{Size: size, Budget: e.opt.WireBudget, Attempts: attempt + 1, Inline: compiled.Stats.InlineAccounts}

		// 只在第一次超限时写入用户表
		if attempt > 0 || e.opt.DisableUserLUT {
			break
		}
		missing := compressor.Uncovered(draft)
		table, err := e.absorb(ctx, req.Payer, userTable, missing, size)
		if err != nil {
			logger.Warnf("[Engine] %s: 用户压缩表写入失败，不使用用户表重试: %v", wallet, err)
			userTable = nil
			continue
		}
		if table != nil {
			extended = len(missing) - len(table.Missing(missing))
		}
		userTable = table
	}

	metrics.BuildResults.WithLabelValues("oversize").Inc()
	e.logPhase(wallet, PhaseFailed, "%v", last)
	return nil, last
}

// absorb 将 missing 写入用户表：无可用表时以 missing 为种子建表，否则扩表
func (e *Engine) absorb(ctx context.Context, owner types.Account, table *core.LookupTable, missing []common.PublicKey, size int) (*core.LookupTable, error) {
	wallet := itypes.ShortKey(owner.PublicKey)
	if table == nil {
		e.logPhase(wallet, PhaseExtendAndRetry, "size=%d, uncovered=%d, table=<new>", size, len(missing))
		created, err := e.tables.Ensure(ctx, owner, missing)
		if err != nil || created == nil {
			return created, err
		}
		// 并发建表时 Ensure 可能返回已有的表，仍需补齐缺失地址
		if len(created.Missing(missing)) == 0 {
			return created, nil
		}
		table = created
	}
	e.logPhase(wallet, PhaseExtendAndRetry, "size=%d, uncovered=%d, table=%s", size, len(missing), table.Address.ToBase58())
	return e.tables.Extend(ctx, owner, table, missing)
}

// withComputeBudget 在指令最前面追加 compute budget 指令
func (e *Engine) withComputeBudget(ixs []core.Instruction) []core.Instruction {
	if e.opt.ComputeUnitLimit == 0 && e.opt.ComputeUnitPrice == 0 {
		return ixs
	}
	for _, ix := range ixs {
		if ix.ProgramID == consts.ComputeBudgetProgram {
			return ixs
		}
	}
	budget := make([]types.Instruction, 0, 2)
	if e.opt.ComputeUnitLimit > 0 {
		budget = append(budget, compute_budget.SetComputeUnitLimit(compute_budget.SetComputeUnitLimitParam{
			Units: e.opt.ComputeUnitLimit,
		}))
	}
	if e.opt.ComputeUnitPrice > 0 {
		budget = append(budget, compute_budget.SetComputeUnitPrice(compute_budget.SetComputeUnitPriceParam{
			MicroLamports: e.opt.ComputeUnitPrice,
		}))
	}
	return append(core.FromSDKAll(budget), ixs...)
}

func (e *Engine) fail(err error) error {
	metrics.BuildResults.WithLabelValues("error").Inc()
	logger.Errorf("[Engine] %s: %v", PhaseFailed, err)
	return err
}

func (e *Engine) logPhase(wallet string, phase Phase, format string, args ...any) {
	logger.Infof("[Engine] %s %s: "+format, append([]any{wallet, phase}, args...)...)
}

// candidateTables 外部表 ∪ 用户表（用户表排在最后）
func candidateTables(external []*core.LookupTable, user *core.LookupTable) []*core.LookupTable {
	out := make([]*core.LookupTable, 0, len(external)+1)
	out = append(out, external...)
	if user != nil {
		out = append(out, user)
	}
	return out
}
