package patcher

import (
	"errors"
	"fmt"

	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/logic/core"

	"github.com/blocto/solana-go-sdk/common"
)

// ErrPatchSkipped 表示未满足补丁前置条件，指令原样返回（非致命）
var ErrPatchSkipped = errors.New("refresh obligation patch skipped")

// refresh_obligation 固定的前两个账户：lending market、obligation
const fixedAccounts = 2

// PatchRefreshObligation 重写 refresh_obligation 指令尾部的 remaining accounts，
// 使其覆盖 obligation 当前涉及的全部 reserve，而不只是本次操作相关的两个。
//
// 规则：
//   - obligation 涉及的去重 reserve ≤ 2：不修改
//   - 第一条 refresh 指令（还款 / 取款之前）：deposit 列表 + borrow 列表，两侧重复的 reserve 不去重
//   - 之后的每条 refresh 指令（还款后的状态）：deposit ∪ borrow 去重
//   - 前两个账户永不修改
//
// 返回的 error 仅可能是包装过的 ErrPatchSkipped，此时指令原样返回。
func PatchRefreshObligation(ixs []core.Instruction, obligation *core.Obligation, programID common.PublicKey) ([]core.Instruction, error) {
	if obligation == nil {
		return ixs, fmt.Errorf("%w: no obligation context", ErrPatchSkipped)
	}
	if len(obligation.DepositReserves) == 0 && len(obligation.BorrowReserves) == 0 {
		return ixs, fmt.Errorf("%w: obligation %s exposes no reserves", ErrPatchSkipped, obligation.Address.ToBase58())
	}

	distinct := obligation.DistinctReserves()
	if len(distinct) <= 2 {
		return ixs, nil
	}

	out := make([]core.Instruction, len(ixs))
	copy(out, ixs)

	seenFirst := false
	for i, ix := range ixs {
		if !IsRefreshObligation(ix, programID) || len(ix.Accounts) < fixedAccounts {
			continue
		}
		reserves := distinct
		if !seenFirst {
			reserves = obligation.OrderedReserves()
			seenFirst = true
		}
		out[i] = replaceRemaining(ix, reserves)
	}
	return out, nil
}

// IsRefreshObligation 按程序地址 + Anchor 判别符识别 refresh_obligation 指令
func IsRefreshObligation(ix core.Instruction, programID common.PublicKey) bool {
	return ix.ProgramID == programID && ix.HasDiscriminator(consts.RefreshObligationDiscriminator[:])
}

// CountRefresh 返回指令列表中 refresh_obligation 的数量
func CountRefresh(ixs []core.Instruction, programID common.PublicKey) int {
	n := 0
	for _, ix := range ixs {
		if IsRefreshObligation(ix, programID) {
			n++
		}
	}
	return n
}

func replaceRemaining(ix core.Instruction, reserves []common.PublicKey) core.Instruction {
	// 原尾部中已存在的地址沿用其角色，新增的按只读处理
	prevRoles := make(map[common.PublicKey]core.AccountRole, len(ix.Accounts)-fixedAccounts)
	for _, acc := range ix.Accounts[fixedAccounts:] {
		if _, ok := prevRoles[acc.Address]; !ok {
			prevRoles[acc.Address] = acc.Role
		}
	}

	accounts := make([]core.AccountRef, 0, fixedAccounts+len(reserves))
	accounts = append(accounts, ix.Accounts[:fixedAccounts]...)
	for _, r := range reserves {
		role, ok := prevRoles[r]
		if !ok {
			role = core.RoleReadOnly
		}
		accounts = append(accounts, core.AccountRef{Address: r, Role: role})
	}
	return core.Instruction{
		ProgramID: ix.ProgramID,
		Accounts:  accounts,
		Data:      ix.Data,
	}
}
