package lookuptable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/logic/core"
	"leverage-executor-sol/internal/metrics"
	itypes "leverage-executor-sol/internal/types"
	"leverage-executor-sol/pkg/logger"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// Chain 压缩表管理所需的链上能力
type Chain interface {
	GetSlot(ctx context.Context) (uint64, error)
	// GetAccountsData 返回与 addrs 一一对应的账户数据，账户不存在时对应位置为 nil
	GetAccountsData(ctx context.Context, addrs []common.PublicKey) ([][]byte, error)
	// SendInstructions 签名、广播并等待确认
	SendInstructions(ctx context.Context, signer types.Account, ixs []types.Instruction) (string, error)
}

// Options 建表 / 扩表后的等待时间，等待 RPC 节点能读到新成员
type Options struct {
	CreateSettle time.Duration
	ExtendSettle time.Duration
}

func DefaultOptions() Options {
	return Options{
		CreateSettle: 2 * time.Second,
		ExtendSettle: time.Second,
	}
}

// Manager 维护每个钱包的用户压缩表：Absent → 创建 → Active；Stale → 重建；Active → 按需扩展
type Manager struct {
	chain   Chain
	store   MetaStore
	builder InstructionBuilder
	opt     Options

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewManager(chain Chain, store MetaStore, builder InstructionBuilder, opt Options) *Manager {
	if builder == nil {
		builder = NativeBuilder{}
	}
	return &Manager{
		chain:   chain,
		store:   store,
		builder: builder,
		opt:     opt,
		sleep:   sleepContext,
		now:     time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ReadTables 读取外部 lookup table 的当前成员；不存在、已停用或无法解析的表被跳过
func (m *Manager) ReadTables(ctx context.Context, addrs []common.PublicKey) ([]*core.LookupTable, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	data, err := m.chain.GetAccountsData(ctx, addrs)
	if err != nil {
		return nil, fmt.Errorf("read lookup tables: %w", err)
	}
	out := make([]*core.LookupTable, 0, len(addrs))
	for i, addr := range addrs {
		if i >= len(data) || len(data[i]) == 0 {
			logger.Warnf("[LookupTable] 外部表不存在，跳过: %s", addr.ToBase58())
			continue
		}
		acc, err := DecodeTableAccount(data[i])
		if err != nil {
			logger.Warnf("[LookupTable] 外部表解析失败，跳过: %s, err=%v", addr.ToBase58(), err)
			continue
		}
		if !acc.Active() {
			logger.Warnf("[LookupTable] 外部表已停用，跳过: %s", addr.ToBase58())
			continue
		}
		out = append(out, acc.ToLookupTable(addr))
	}
	return out, nil
}

// readTable 读取单张表，账户不存在时返回 (nil, nil)
func (m *Manager) readTable(ctx context.Context, addr common.PublicKey) (*TableAccount, error) {
	data, err := m.chain.GetAccountsData(ctx, []common.PublicKey{addr})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, nil
	}
	return DecodeTableAccount(data[0])
}

// Inspect 结合元数据与链上状态判定钱包压缩表的状态。
// 返回的 table 仅在 StateActive 时非 nil。
func (m *Manager) Inspect(ctx context.Context, owner common.PublicKey) (State, *Meta, *core.LookupTable, error) {
	meta, err := m.store.Load(ctx, owner)
	if err != nil {
		return StateAbsent, nil, nil, fmt.Errorf("load table metadata: %w", err)
	}
	if meta == nil {
		return StateAbsent, nil, nil, nil
	}

	acc, err := m.readTable(ctx, meta.Table)
	if err != nil {
		// 无法解析的账户（如地址已被复用为其他账户）视为失效
		if isDecodeError(err) {
			return StateStale, meta, nil, nil
		}
		return StateAbsent, meta, nil, fmt.Errorf("read user table %s: %w", meta.Table.ToBase58(), err)
	}
	if acc == nil || !acc.Active() || len(acc.Addresses) == 0 {
		return StateStale, meta, nil, nil
	}
	return StateActive, meta, acc.ToLookupTable(meta.Table), nil
}

// Active 返回钱包当前可用的用户表，非 Active 状态返回 (nil, nil)，不会建表
func (m *Manager) Active(ctx context.Context, owner common.PublicKey) (*core.LookupTable, error) {
	state, _, table, err := m.Inspect(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTableUnavailable, err)
	}
	if state != StateActive {
		return nil, nil
	}
	return table, nil
}

// Ensure 确保 owner 拥有一张可用的压缩表。Active 时直接返回；
// Absent / Stale 时以 seed 为初始成员创建新表。seed 为空且无可用表时返回 (nil, nil)。
func (m *Manager) Ensure(ctx context.Context, owner types.Account, seed []common.PublicKey) (*core.LookupTable, error) {
	wallet := owner.PublicKey
	state, meta, table, err := m.Inspect(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTableUnavailable, err)
	}
	if state == StateActive {
		logger.Debugf("[LookupTable] 用户表可用: wallet=%s, table=%s, size=%d",
			itypes.ShortKey(wallet), table.Address.ToBase58(), table.Len())
		return table, nil
	}

	seed = dedupe(seed)
	if len(seed) > consts.MaxLookupTableAddresses {
		seed = seed[:consts.MaxLookupTableAddresses]
	}
	if len(seed) == 0 {
		return nil, nil
	}
	if state == StateStale {
		logger.Warnf("[LookupTable] 元数据指向的表已失效，重新创建: wallet=%s, stale=%s",
			itypes.ShortKey(wallet), meta.Table.ToBase58())
	}

	table, err = m.create(ctx, owner, seed)
	metrics.ObserveTableOp("create", len(seed), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTableUnavailable, err)
	}
	return table, nil
}

func (m *Manager) create(ctx context.Context, owner types.Account, seed []common.PublicKey) (*core.LookupTable, error) {
	wallet := owner.PublicKey
	slot, err := m.chain.GetSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}

	addr, batches := m.builder.CreateTable(wallet, slot, seed)
	logger.Infof("[LookupTable] 创建用户表: wallet=%s, table=%s, slot=%d, seed=%d, batches=%d",
		itypes.ShortKey(wallet), addr.ToBase58(), slot, len(seed), len(batches))

	for i, batch := range batches {
		sig, err := m.chain.SendInstructions(ctx, owner, batch)
		if err != nil {
			return nil, fmt.Errorf("create batch %d/%d: %w", i+1, len(batches), err)
		}
		logger.Infof("[LookupTable] 建表批次已确认: table=%s, batch=%d/%d, sig=%s", addr.ToBase58(), i+1, len(batches), sig)

		if i == 0 {
			// 表账户已上链，先落元数据，后续批次失败时仍可复用
			meta := &Meta{Owner: wallet, Table: addr, CreatedSlot: slot, UpdatedAt: m.now().Unix()}
			if err := m.store.Save(ctx, meta); err != nil {
				return nil, fmt.Errorf("save table metadata: %w", err)
			}
		}
	}

	if err := m.sleep(ctx, m.opt.CreateSettle); err != nil {
		return nil, err
	}
	acc, err := m.readTable(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("re-read table %s: %w", addr.ToBase58(), err)
	}
	if acc == nil {
		return nil, fmt.Errorf("table %s not visible after creation", addr.ToBase58())
	}
	return acc.ToLookupTable(addr), nil
}

// Extend 将 addrs 中尚未收录的地址追加到用户表，每 20 个地址一笔交易。
// 扩展前重新读取链上成员，已存在的地址不会重复追加。
// 容量不足时轮换为新表，返回的表地址可能与入参不同。
func (m *Manager) Extend(ctx context.Context, owner types.Account, table *core.LookupTable, addrs []common.PublicKey) (*core.LookupTable, error) {
	out, added, err := m.extend(ctx, owner, table, addrs)
	metrics.ObserveTableOp("extend", added, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTableUnavailable, err)
	}
	return out, nil
}

func (m *Manager) extend(ctx context.Context, owner types.Account, table *core.LookupTable, addrs []common.PublicKey) (*core.LookupTable, int, error) {
	if table == nil {
		return nil, 0, fmt.Errorf("no user table to extend")
	}
	acc, err := m.readTable(ctx, table.Address)
	if err != nil {
		return nil, 0, fmt.Errorf("re-read table %s: %w", table.Address.ToBase58(), err)
	}
	if acc == nil || !acc.Active() {
		return nil, 0, fmt.Errorf("table %s is no longer active", table.Address.ToBase58())
	}

	current := acc.ToLookupTable(table.Address)
	missing := current.Missing(addrs)
	if len(missing) == 0 {
		return current, 0, nil
	}
	if current.Len()+len(missing) > consts.MaxLookupTableAddresses {
		rotated, err := m.rotate(ctx, owner, current, missing)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: have %d, adding %d: %w", ErrTableFull, current.Len(), len(missing), err)
		}
		return rotated, len(missing), nil
	}

	batches := m.builder.ExtendTable(owner.PublicKey, table.Address, missing)
	logger.Infof("[LookupTable] 扩展用户表: table=%s, size=%d, adding=%d, batches=%d",
		table.Address.ToBase58(), current.Len(), len(missing), len(batches))

	for i, batch := range batches {
		sig, err := m.chain.SendInstructions(ctx, owner, batch)
		if err != nil {
			return nil, 0, fmt.Errorf("extend batch %d/%d: %w", i+1, len(batches), err)
		}
		logger.Infof("[LookupTable] 扩表批次已确认: table=%s, batch=%d/%d, sig=%s", table.Address.ToBase58(), i+1, len(batches), sig)
	}

	if err := m.sleep(ctx, m.opt.ExtendSettle); err != nil {
		return nil, 0, err
	}
	acc, err = m.readTable(ctx, table.Address)
	if err != nil {
		return nil, 0, fmt.Errorf("re-read table %s: %w", table.Address.ToBase58(), err)
	}
	if acc == nil {
		return nil, 0, fmt.Errorf("table %s disappeared after extension", table.Address.ToBase58())
	}
	return acc.ToLookupTable(table.Address), len(missing), nil
}

// rotate 表已满时以 missing 为种子新建一张表替换元数据，旧表随后停用（失败仅告警）
func (m *Manager) rotate(ctx context.Context, owner types.Account, full *core.LookupTable, missing []common.PublicKey) (*core.LookupTable, error) {
	wallet := owner.PublicKey
	logger.Warnf("[LookupTable] 用户表已满，轮换新表: wallet=%s, table=%s, size=%d, adding=%d",
		itypes.ShortKey(wallet), full.Address.ToBase58(), full.Len(), len(missing))

	seed := dedupe(missing)
	if len(seed) > consts.MaxLookupTableAddresses {
		seed = seed[:consts.MaxLookupTableAddresses]
	}
	table, err := m.create(ctx, owner, seed)
	metrics.ObserveTableOp("create", len(seed), err)
	if err != nil {
		return nil, err
	}

	sig, err := m.chain.SendInstructions(ctx, owner, m.builder.DeactivateTable(wallet, full.Address))
	if err != nil {
		logger.Warnf("[LookupTable] 停用旧表失败: wallet=%s, table=%s, err=%v", itypes.ShortKey(wallet), full.Address.ToBase58(), err)
	} else {
		logger.Infof("[LookupTable] 旧表已停用: table=%s, sig=%s", full.Address.ToBase58(), sig)
	}
	return table, nil
}

func isDecodeError(err error) bool {
	return errors.Is(err, errNotLookupTable)
}

func dedupe(addrs []common.PublicKey) []common.PublicKey {
	seen := make(map[common.PublicKey]struct{}, len(addrs))
	out := make([]common.PublicKey, 0, len(addrs))
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
