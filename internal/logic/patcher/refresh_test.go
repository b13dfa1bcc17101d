package patcher

import (
	"errors"
	"testing"

	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/logic/core"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) common.PublicKey {
	var k common.PublicKey
	k[0] = b
	k[2] = 0x33
	return k
}

var (
	market     = key(1)
	obligation = key(2)
	reserveA   = key(10)
	reserveB   = key(11)
	reserveC   = key(12)
	reserveD   = key(13)
)

func refreshIx(trailing ...common.PublicKey) core.Instruction {
	accounts := []core.AccountRef{
		{Address: market, Role: core.RoleReadOnly},
		{Address: obligation, Role: core.RoleWritable},
	}
	for _, r := range trailing {
		accounts = append(accounts, core.AccountRef{Address: r, Role: core.RoleReadOnly})
	}
	return core.Instruction{
		ProgramID: consts.KaminoLendProgram,
		Accounts:  accounts,
		Data:      append([]byte{}, consts.RefreshObligationDiscriminator[:]...),
	}
}

func otherIx() core.Instruction {
	return core.Instruction{
		ProgramID: consts.KaminoLendProgram,
		Accounts:  []core.AccountRef{{Address: key(50), Role: core.RoleWritable}},
		Data:      []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
}

// 操作序列：refresh → repay → refresh → withdraw → refresh
func sequence() []core.Instruction {
	return []core.Instruction{
		refreshIx(reserveA, reserveB),
		otherIx(),
		refreshIx(reserveA, reserveB),
		otherIx(),
		refreshIx(reserveA),
	}
}

func TestPatchUnchangedWhenTwoOrFewerReserves(t *testing.T) {
	ob := core.NewObligation(obligation, []common.PublicKey{reserveA}, []common.PublicKey{reserveB, reserveA})
	in := sequence()
	out, err := PatchRefreshObligation(in, ob, consts.KaminoLendProgram)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPatchFirstAndSubsequentRefresh(t *testing.T) {
	// reserveB 同时出现在 deposit 与 borrow 两侧
	ob := core.NewObligation(obligation,
		[]common.PublicKey{reserveA, reserveB, reserveC},
		[]common.PublicKey{reserveB, reserveD},
	)
	out, err := PatchRefreshObligation(sequence(), ob, consts.KaminoLendProgram)
	require.NoError(t, err)

	first := out[0]
	assert.Len(t, first.Accounts, 2+len(ob.DepositReserves)+len(ob.BorrowReserves))
	assert.Equal(t, market, first.Accounts[0].Address)
	assert.Equal(t, obligation, first.Accounts[1].Address)
	assert.Equal(t, []common.PublicKey{reserveA, reserveB, reserveC, reserveB, reserveD}, addrs(first.Accounts[2:]))

	for _, i := range []int{2, 4} {
		assert.Len(t, out[i].Accounts, 2+4, "后续 refresh 去重")
		assert.Equal(t, []common.PublicKey{reserveA, reserveB, reserveC, reserveD}, addrs(out[i].Accounts[2:]))
	}

	// 非 refresh 指令不变
	assert.Equal(t, otherIx(), out[1])
	assert.Equal(t, otherIx(), out[3])
}

func TestPatchKeepsExistingRoles(t *testing.T) {
	in := []core.Instruction{refreshIx(reserveA)}
	in[0].Accounts[2].Role = core.RoleWritable
	ob := core.NewObligation(obligation, []common.PublicKey{reserveA, reserveB}, []common.PublicKey{reserveC})

	out, err := PatchRefreshObligation(in, ob, consts.KaminoLendProgram)
	require.NoError(t, err)
	assert.Equal(t, core.RoleWritable, out[0].Accounts[2].Role)
	assert.Equal(t, core.RoleReadOnly, out[0].Accounts[3].Role)
	assert.Equal(t, core.RoleWritable, out[0].Accounts[1].Role, "固定账户不动")
	// 原始指令不被修改
	assert.Len(t, in[0].Accounts, 3)
}

func TestPatchSkipped(t *testing.T) {
	in := sequence()

	out, err := PatchRefreshObligation(in, nil, consts.KaminoLendProgram)
	assert.True(t, errors.Is(err, ErrPatchSkipped))
	assert.Equal(t, in, out)

	out, err = PatchRefreshObligation(in, core.NewObligation(obligation, nil, nil), consts.KaminoLendProgram)
	assert.True(t, errors.Is(err, ErrPatchSkipped))
	assert.Equal(t, in, out)
}

func TestPatchIgnoresOtherProgram(t *testing.T) {
	ix := refreshIx(reserveA)
	ix.ProgramID = key(99)
	ob := core.NewObligation(obligation, []common.PublicKey{reserveA, reserveB, reserveC}, nil)

	out, err := PatchRefreshObligation([]core.Instruction{ix}, ob, consts.KaminoLendProgram)
	require.NoError(t, err)
	assert.Equal(t, ix, out[0])
	assert.Equal(t, 0, CountRefresh(out, consts.KaminoLendProgram))
	assert.Equal(t, 3, CountRefresh(sequence(), consts.KaminoLendProgram))
}

func addrs(refs []core.AccountRef) []common.PublicKey {
	out := make([]common.PublicKey, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Address)
	}
	return out
}
