package lookuptable

import (
	"leverage-executor-sol/internal/consts"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/address_lookup_table"
	"github.com/blocto/solana-go-sdk/types"
)

// InstructionBuilder 生成建表 / 扩表指令。每个批次作为一笔独立交易按顺序执行。
type InstructionBuilder interface {
	CreateTable(owner common.PublicKey, recentSlot uint64, seed []common.PublicKey) (common.PublicKey, [][]types.Instruction)
	ExtendTable(owner, table common.PublicKey, addrs []common.PublicKey) [][]types.Instruction
	DeactivateTable(owner, table common.PublicKey) []types.Instruction
}

// NativeBuilder 使用 address lookup table 程序原生指令，owner 同时作为 authority 与 payer
type NativeBuilder struct{}

// CreateTable 批次 0 = create + 第一段种子地址，其后每段种子一个 extend 批次
func (NativeBuilder) CreateTable(owner common.PublicKey, recentSlot uint64, seed []common.PublicKey) (common.PublicKey, [][]types.Instruction) {
	table, bump := address_lookup_table.DeriveLookupTableAddress(owner, recentSlot)
	create := address_lookup_table.CreateLookupTable(address_lookup_table.CreateLookupTableParams{
		LookupTable: table,
		Authority:   owner,
		Payer:       owner,
		RecentSlot:  recentSlot,
		BumpSeed:    bump,
	})

	chunks := chunkAddresses(seed, consts.ExtendChunkSize)
	if len(chunks) == 0 {
		return table, [][]types.Instruction{{create}}
	}
	batches := make([][]types.Instruction, 0, len(chunks))
	batches = append(batches, []types.Instruction{create, extendInstruction(owner, table, chunks[0])})
	for _, c := range chunks[1:] {
		batches = append(batches, []types.Instruction{extendInstruction(owner, table, c)})
	}
	return table, batches
}

func (NativeBuilder) ExtendTable(owner, table common.PublicKey, addrs []common.PublicKey) [][]types.Instruction {
	chunks := chunkAddresses(addrs, consts.ExtendChunkSize)
	batches := make([][]types.Instruction, 0, len(chunks))
	for _, c := range chunks {
		batches = append(batches, []types.Instruction{extendInstruction(owner, table, c)})
	}
	return batches
}

// DeactivateTable 停用后需等待冷却期才能 close 回收租金，close 不在此处理
func (NativeBuilder) DeactivateTable(owner, table common.PublicKey) []types.Instruction {
	return []types.Instruction{address_lookup_table.DeactivateLookupTable(address_lookup_table.DeactivateLookupTableParams{
		LookupTable: table,
		Authority:   owner,
	})}
}

func extendInstruction(owner, table common.PublicKey, addrs []common.PublicKey) types.Instruction {
	payer := owner
	return address_lookup_table.ExtendLookupTable(address_lookup_table.ExtendLookupTableParams{
		LookupTable: table,
		Authority:   owner,
		Payer:       &payer,
		Addresses:   addrs,
	})
}

// chunkAddresses 按 size 切分，保持顺序
func chunkAddresses(addrs []common.PublicKey, size int) [][]common.PublicKey {
	if len(addrs) == 0 || size <= 0 {
		return nil
	}
	out := make([][]common.PublicKey, 0, (len(addrs)+size-1)/size)
	for start := 0; start < len(addrs); start += size {
		end := start + size
		if end > len(addrs) {
			end = len(addrs)
		}
		out = append(out, addrs[start:end])
	}
	return out
}
