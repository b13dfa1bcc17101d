package core

import (
	"bytes"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// AccountRef 表示指令中的一个账户引用（地址 + 角色）
type AccountRef struct {
	Address common.PublicKey
	Role    AccountRole
}

// Instruction 表示一条待编译的指令。
// Accounts 保持上游给出的原始顺序，除 signer 降级与 refresh_obligation 尾部替换外不做改动。
type Instruction struct {
	ProgramID common.PublicKey
	Accounts  []AccountRef
	Data      []byte // 指令数据（不透明）
}

// Clone 深拷贝账户列表，Data 共享（调用方不应修改 Data）
func (ix Instruction) Clone() Instruction {
	accounts := make([]AccountRef, len(ix.Accounts))
	copy(accounts, ix.Accounts)
	return Instruction{
		ProgramID: ix.ProgramID,
		Accounts:  accounts,
		Data:      ix.Data,
	}
}

// HasDiscriminator 判断指令数据是否以给定前缀开头（Anchor 8 字节判别符）
func (ix Instruction) HasDiscriminator(d []byte) bool {
	return len(ix.Data) >= len(d) && bytes.Equal(ix.Data[:len(d)], d)
}

// FromSDK 将 SDK 指令转换为内部模型，SDK 生成的指令（如 compute budget）经此进入编译流程
func FromSDK(ix types.Instruction) Instruction {
	accounts := make([]AccountRef, 0, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		accounts = append(accounts, AccountRef{
			Address: meta.PubKey,
			Role:    NewAccountRole(meta.IsSigner, meta.IsWritable),
		})
	}
	return Instruction{
		ProgramID: ix.ProgramID,
		Accounts:  accounts,
		Data:      ix.Data,
	}
}

// FromSDKAll 批量转换
func FromSDKAll(ixs []types.Instruction) []Instruction {
	out := make([]Instruction, 0, len(ixs))
	for _, ix := range ixs {
		out = append(out, FromSDK(ix))
	}
	return out
}
