package compressor

import (
	"errors"
	"fmt"

	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/logic/core"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

var (
	ErrNoInstructions  = errors.New("draft has no instructions")
	ErrTooManyAccounts = errors.New("transaction references more than 256 accounts")
)

// Stats 记录一次编译的压缩效果
type Stats struct {
	StaticKeys     int // 消息中内联的账户总数（含 fee payer 与被调用程序）
	InlineAccounts int // 内联账户中除 fee payer、被调用程序之外的数量
	LookedUp       int // 通过 lookup table 引用的账户数
	TablesUsed     int // 实际引用的 lookup table 数
}

// Compiled 表示一条编译完成的 v0 消息
type Compiled struct {
	Message types.Message
	Stats   Stats
	Tables  []*core.LookupTable // 与 Message.AddressLookupTables 一一对应
}

// accountUsage 记录地址在整笔交易中的聚合用途
type accountUsage struct {
	role      core.AccountRole
	isProgram bool
	table     int // 分配到的候选表下标，-1 表示内联
}

// Compile 将草稿编译为 v0 消息：
// 可压缩的账户（非 fee payer、非 signer、非被调用程序、且存在于某张候选表）改为 (table, index) 引用，
// 其余账户内联。同一地址在交易内任一处可写即按可写编译。
func Compile(d *core.Draft) (*Compiled, error) {
	if len(d.Instructions) == 0 {
		return nil, ErrNoInstructions
	}

	order, usage := collectUsage(d)
	assignTables(d, usage)

	// 1. 内联账户：fee payer、可写 signer、只读 signer、可写非 signer、只读非 signer
	static := make([]common.PublicKey, 0, len(order))
	static = append(static, d.FeePayer)
	var header types.MessageHeader
	header.NumRequireSignatures = 1

	groups := [4][]common.PublicKey{}
	for _, addr := range order {
		if addr == d.FeePayer {
			continue
		}
		u := usage[addr]
		if u.table >= 0 {
			continue
		}
		switch u.role {
		case core.RoleWritableSigner:
			groups[0] = append(groups[0], addr)
		case core.RoleReadOnlySigner:
			groups[1] = append(groups[1], addr)
		case core.RoleWritable:
			groups[2] = append(groups[2], addr)
		default:
			groups[3] = append(groups[3], addr)
		}
	}
	for _, g := range groups {
		static = append(static, g...)
	}
	header.NumRequireSignatures += uint8(len(groups[0]) + len(groups[1]))
	header.NumReadonlySignedAccounts = uint8(len(groups[1]))
	header.NumReadonlyUnsignedAccounts = uint8(len(groups[3]))

	// 2. lookup 引用：按表首次使用顺序，每张表内先可写后只读
	usedOrder := tableOrder(order, usage)
	writable := make([][]common.PublicKey, len(usedOrder))
	readonly := make([][]common.PublicKey, len(usedOrder))
	pos := make(map[int]int, len(usedOrder))
	for i, t := range usedOrder {
		pos[t] = i
	}
	for _, addr := range order {
		u := usage[addr]
		if u.table < 0 {
			continue
		}
		p := pos[u.table]
		if u.role.IsWritable() {
			writable[p] = append(writable[p], addr)
		} else {
			readonly[p] = append(readonly[p], addr)
		}
	}

	// 3. 账户索引空间：内联 → 各表可写 → 各表只读
	keyIndex := make(map[common.PublicKey]int, len(order)+1)
	next := 0
	for _, addr := range static {
		keyIndex[addr] = next
		next++
	}
	for _, list := range writable {
		for _, addr := range list {
			keyIndex[addr] = next
			next++
		}
	}
	for _, list := range readonly {
		for _, addr := range list {
			keyIndex[addr] = next
			next++
		}
	}
	if next > consts.MaxTransactionAccounts {
		return nil, fmt.Errorf("%w: %d", ErrTooManyAccounts, next)
	}

	lookups := make([]types.CompiledAddressLookupTable, 0, len(usedOrder))
	tables := make([]*core.LookupTable, 0, len(usedOrder))
	looked := 0
	for i, t := range usedOrder {
		table := d.Tables[t]
		lookups = append(lookups, types.CompiledAddressLookupTable{
			AccountKey:      table.Address,
			WritableIndexes: tableIndexes(table, writable[i]),
			ReadonlyIndexes: tableIndexes(table, readonly[i]),
		})
		tables = append(tables, table)
		looked += len(writable[i]) + len(readonly[i])
	}

	instructions := make([]types.CompiledInstruction, 0, len(d.Instructions))
	for _, ix := range d.Instructions {
		accounts := make([]int, 0, len(ix.Accounts))
		for _, acc := range ix.Accounts {
			accounts = append(accounts, keyIndex[acc.Address])
		}
		instructions = append(instructions, types.CompiledInstruction{
			ProgramIDIndex: keyIndex[ix.ProgramID],
			Accounts:       accounts,
			Data:           ix.Data,
		})
	}

	inline := 0
	for _, addr := range static[1:] {
		if !usage[addr].isProgram {
			inline++
		}
	}

	return &Compiled{
		Message: types.Message{
			Version:             types.MessageVersionV0,
			Header:              header,
			Accounts:            static,
			RecentBlockHash:     d.RecentBlockhash,
			Instructions:        instructions,
			AddressLookupTables: lookups,
		},
		Stats: Stats{
			StaticKeys:     len(static),
			InlineAccounts: inline,
			LookedUp:       looked,
			TablesUsed:     len(usedOrder),
		},
		Tables: tables,
	}, nil
}

// collectUsage 按首次出现顺序收集地址，并聚合其在整笔交易中的角色
func collectUsage(d *core.Draft) ([]common.PublicKey, map[common.PublicKey]*accountUsage) {
	usage := make(map[common.PublicKey]*accountUsage, 64)
	order := make([]common.PublicKey, 0, 64)

	touch := func(addr common.PublicKey, role core.AccountRole) *accountUsage {
		u, ok := usage[addr]
		if !ok {
			u = &accountUsage{role: role, table: -1}
			usage[addr] = u
			order = append(order, addr)
			return u
		}
		u.role = u.role.Merge(role)
		return u
	}

	touch(d.FeePayer, core.RoleWritableSigner)
	for _, ix := range d.Instructions {
		for _, acc := range ix.Accounts {
			touch(acc.Address, acc.Role)
		}
		touch(ix.ProgramID, core.RoleReadOnly).isProgram = true
	}
	usage[d.FeePayer].role = core.RoleWritableSigner
	return order, usage
}

// compressible 判断地址是否允许通过 lookup table 引用
func compressible(addr common.PublicKey, u *accountUsage, feePayer common.PublicKey) bool {
	return addr != feePayer && !u.role.IsSigner() && !u.isProgram
}

// assignTables 为每个可压缩地址选择候选表。
// 优先级：本指令内已选中的表 → 本交易已使用的表 → 覆盖本指令剩余可压缩地址最多的表 → 候选顺序。
func assignTables(d *core.Draft, usage map[common.PublicKey]*accountUsage) {
	if len(d.Tables) == 0 {
		return
	}
	usedTx := make(map[int]bool, len(d.Tables))

	for _, ix := range d.Instructions {
		usedIx := make(map[int]bool, 2)
		for _, acc := range ix.Accounts {
			u := usage[acc.Address]
			if u.table >= 0 {
				usedIx[u.table] = true
				continue
			}
			if !compressible(acc.Address, u, d.FeePayer) {
				continue
			}
			candidates := candidateTables(d.Tables, acc.Address)
			if len(candidates) == 0 {
				continue
			}
			chosen := pick(candidates, usedIx)
			if chosen < 0 {
				chosen = pick(candidates, usedTx)
			}
			if chosen < 0 {
				chosen = bestCoverage(candidates, d, ix, usage)
			}
			u.table = chosen
			usedIx[chosen] = true
			usedTx[chosen] = true
		}
	}
}

func candidateTables(tables []*core.LookupTable, addr common.PublicKey) []int {
	var out []int
	for i, t := range tables {
		if idx, ok := t.IndexOf(addr); ok && idx < consts.MaxLookupTableAddresses {
			out = append(out, i)
		}
	}
	return out
}

func pick(candidates []int, preferred map[int]bool) int {
	for _, c := range candidates {
		if preferred[c] {
			return c
		}
	}
	return -1
}

func bestCoverage(candidates []int, d *core.Draft, ix core.Instruction, usage map[common.PublicKey]*accountUsage) int {
	best, bestCount := candidates[0], -1
	for _, c := range candidates {
		count := 0
		for _, acc := range ix.Accounts {
			u := usage[acc.Address]
			if u.table < 0 && compressible(acc.Address, u, d.FeePayer) && d.Tables[c].Contains(acc.Address) {
				count++
			}
		}
		if count > bestCount {
			best, bestCount = c, count
		}
	}
	return best
}

// tableOrder 返回被实际使用的表下标，按其承载的第一个地址的出现顺序
func tableOrder(order []common.PublicKey, usage map[common.PublicKey]*accountUsage) []int {
	seen := make(map[int]bool, 4)
	var out []int
	for _, addr := range order {
		t := usage[addr].table
		if t < 0 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func tableIndexes(table *core.LookupTable, addrs []common.PublicKey) []uint8 {
	out := make([]uint8, 0, len(addrs))
	for _, a := range addrs {
		idx, _ := table.IndexOf(a)
		out = append(out, uint8(idx))
	}
	return out
}
