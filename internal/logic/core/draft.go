package core

import "github.com/blocto/solana-go-sdk/common"

// Draft 表示一次待编译的交易草稿，每次构建临时生成，不跨操作复用。
type Draft struct {
	FeePayer        common.PublicKey
	RecentBlockhash string
	Instructions    []Instruction
	Tables          []*LookupTable // 候选 lookup table（外部 swap 路由表 ∪ 用户表）
}
