package core

import "github.com/blocto/solana-go-sdk/common"

// Obligation 表示借贷协议中某个借款人的仓位记录（抵押 reserve 与借款 reserve）。
// 同一个 reserve 可能同时出现在两侧（例如同币种循环借贷）。
type Obligation struct {
	Address         common.PublicKey
	DepositReserves []common.PublicKey
	BorrowReserves  []common.PublicKey
}

// NewObligation 构造时过滤掉零地址（链上定长数组中未使用的槽位）
func NewObligation(address common.PublicKey, deposits, borrows []common.PublicKey) *Obligation {
	return &Obligation{
		Address:         address,
		DepositReserves: dropZero(deposits),
		BorrowReserves:  dropZero(borrows),
	}
}

// DistinctReserves 返回 deposit ∪ borrow 去重后的 reserve 列表（按首次出现顺序）
func (o *Obligation) DistinctReserves() []common.PublicKey {
	if o == nil {
		return nil
	}
	seen := make(map[common.PublicKey]struct{}, len(o.DepositReserves)+len(o.BorrowReserves))
	out := make([]common.PublicKey, 0, len(o.DepositReserves)+len(o.BorrowReserves))
	for _, list := range [][]common.PublicKey{o.DepositReserves, o.BorrowReserves} {
		for _, r := range list {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// OrderedReserves 返回 deposit 列表后接 borrow 列表，两侧重复的 reserve 不去重
func (o *Obligation) OrderedReserves() []common.PublicKey {
	if o == nil {
		return nil
	}
	out := make([]common.PublicKey, 0, len(o.DepositReserves)+len(o.BorrowReserves))
	out = append(out, o.DepositReserves...)
	out = append(out, o.BorrowReserves...)
	return out
}

func dropZero(keys []common.PublicKey) []common.PublicKey {
	out := make([]common.PublicKey, 0, len(keys))
	for _, k := range keys {
		if k != (common.PublicKey{}) {
			out = append(out, k)
		}
	}
	return out
}
