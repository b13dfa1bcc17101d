package compressor

import (
	"fmt"

	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/logic/core"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// Resolve 按运行时规则展开消息的完整账户列表：内联账户 → 各表可写 → 各表只读。
// tables 必须包含消息引用的全部表。
func Resolve(msg types.Message, tables []*core.LookupTable) ([]common.PublicKey, error) {
	byAddr := make(map[common.PublicKey]*core.LookupTable, len(tables))
	for _, t := range tables {
		byAddr[t.Address] = t
	}

	keys := make([]common.PublicKey, 0, len(msg.Accounts)+16)
	keys = append(keys, msg.Accounts...)

	expand := func(writable bool) error {
		for _, lookup := range msg.AddressLookupTables {
			t, ok := byAddr[lookup.AccountKey]
			if !ok {
				return fmt.Errorf("lookup table %s not provided", lookup.AccountKey.ToBase58())
			}
			indexes := lookup.ReadonlyIndexes
			if writable {
				indexes = lookup.WritableIndexes
			}
			for _, idx := range indexes {
				if int(idx) >= len(t.Addresses) {
					return fmt.Errorf("lookup table %s index %d out of range", lookup.AccountKey.ToBase58(), idx)
				}
				keys = append(keys, t.Addresses[idx])
			}
		}
		return nil
	}
	if err := expand(true); err != nil {
		return nil, err
	}
	if err := expand(false); err != nil {
		return nil, err
	}
	return keys, nil
}

// Uncovered 返回草稿中可压缩但不在任何候选表中的地址（首次出现顺序，去重）。
// fee payer、signer、被调用程序不计入。
func Uncovered(d *core.Draft) []common.PublicKey {
	order, usage := collectUsage(d)
	out := make([]common.PublicKey, 0, len(order))
	for _, addr := range order {
		if !compressible(addr, usage[addr], d.FeePayer) {
			continue
		}
		if len(candidateTables(d.Tables, addr)) == 0 {
			out = append(out, addr)
		}
	}
	return out
}

// Serialize 用给定 signer 签名并序列化消息，返回交易及其线上字节
func Serialize(c *Compiled, signers ...types.Account) (types.Transaction, []byte, error) {
	tx, err := types.NewTransaction(types.NewTransactionParam{
		Message: c.Message,
		Signers: signers,
	})
	if err != nil {
		return types.Transaction{}, nil, fmt.Errorf("sign transaction: %w", err)
	}
	raw, err := tx.Serialize()
	if err != nil {
		return types.Transaction{}, nil, fmt.Errorf("serialize transaction: %w", err)
	}
	return tx, raw, nil
}

// EstimateSize 在不签名的情况下估算线上字节数（签名按固定长度占位）
func EstimateSize(c *Compiled) (int, error) {
	raw, err := c.Message.Serialize()
	if err != nil {
		return 0, err
	}
	n := int(c.Message.Header.NumRequireSignatures)
	return compactLen(n) + n*consts.SignatureLength + len(raw), nil
}

// compactLen 返回 compact-u16 长度前缀的字节数
func compactLen(n int) int {
	switch {
	case n < 0x80:
		return 1
	case n < 0x4000:
		return 2
	default:
		return 3
	}
}
