package core

import "github.com/blocto/solana-go-sdk/common"

// LookupTable 表示一张链上 address lookup table 的当前成员快照。
type LookupTable struct {
	Address   common.PublicKey
	Addresses []common.PublicKey // 链上顺序，下标即压缩后的索引

	index     map[common.PublicKey]int // 懒加载的反查表
	indexedAt int                      // 构建 index 时的成员数，成员变化后重建
}

func NewLookupTable(address common.PublicKey, addresses []common.PublicKey) *LookupTable {
	return &LookupTable{Address: address, Addresses: addresses}
}

func (t *LookupTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Addresses)
}

// IndexOf 返回地址在表中的首个下标
func (t *LookupTable) IndexOf(addr common.PublicKey) (int, bool) {
	if t == nil {
		return 0, false
	}
	if t.index == nil || t.indexedAt != len(t.Addresses) {
		t.buildIndex()
	}
	idx, ok := t.index[addr]
	return idx, ok
}

func (t *LookupTable) Contains(addr common.PublicKey) bool {
	_, ok := t.IndexOf(addr)
	return ok
}

func (t *LookupTable) buildIndex() {
	t.index = make(map[common.PublicKey]int, len(t.Addresses))
	t.indexedAt = len(t.Addresses)
	for i, a := range t.Addresses {
		if _, dup := t.index[a]; !dup {
			t.index[a] = i
		}
	}
}

// Missing 返回 addrs 中尚未被本表收录的地址（保持输入顺序，去重）
func (t *LookupTable) Missing(addrs []common.PublicKey) []common.PublicKey {
	seen := make(map[common.PublicKey]struct{}, len(addrs))
	out := make([]common.PublicKey, 0, len(addrs))
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		if !t.Contains(a) {
			out = append(out, a)
		}
	}
	return out
}
