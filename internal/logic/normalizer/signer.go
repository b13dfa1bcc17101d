package normalizer

import (
	"leverage-executor-sol/internal/logic/core"

	"github.com/blocto/solana-go-sdk/common"
)

// NormalizeSigners 将除真实顶层签名者之外的所有 signer 账户降级为非 signer。
//
// 协议 SDK 会把 PDA（通过 CPI 调用链授权的账户）标记为 signer，
// 这些账户在交易顶层无法提供签名，保留 signer 标记会导致签名校验失败并多占签名空间。
// 纯函数：不修改入参，重复调用结果不变。
func NormalizeSigners(ixs []core.Instruction, signer common.PublicKey) []core.Instruction {
	out := make([]core.Instruction, len(ixs))
	for i, ix := range ixs {
		c := ix.Clone()
		for j := range c.Accounts {
			acc := &c.Accounts[j]
			if acc.Role.IsSigner() && acc.Address != signer {
				acc.Role = acc.Role.WithoutSigner()
			}
		}
		out[i] = c
	}
	return out
}

// CountDowngrades 统计需要降级的 signer 账户引用数，仅用于日志
func CountDowngrades(ixs []core.Instruction, signer common.PublicKey) int {
	n := 0
	for _, ix := range ixs {
		for _, acc := range ix.Accounts {
			if acc.Role.IsSigner() && acc.Address != signer {
				n++
			}
		}
	}
	return n
}
