package lookuptable

import (
	"errors"

	"github.com/blocto/solana-go-sdk/common"
)

var (
	// ErrTableUnavailable 用户压缩表无法创建或扩展，调用方应降级为不使用该表
	ErrTableUnavailable = errors.New("user lookup table unavailable")
	// ErrTableFull 扩表后成员数将超过上限，且轮换新表失败
	ErrTableFull = errors.New("lookup table capacity exceeded")
)

// State 表示钱包对应的用户压缩表状态
type State int

const (
	StateAbsent State = iota // 无元数据
	StateStale               // 有元数据，但链上账户缺失 / 为空 / 已停用
	StateActive              // 链上存在且成员可读
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "Absent"
	case StateStale:
		return "Stale"
	case StateActive:
		return "Active"
	default:
		return "Unknown"
	}
}

// Meta 钱包 → 压缩表的持久化记录
type Meta struct {
	Owner       common.PublicKey
	Table       common.PublicKey
	CreatedSlot uint64
	UpdatedAt   int64 // unix 秒
}
