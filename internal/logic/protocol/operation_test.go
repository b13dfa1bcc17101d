package protocol

import (
	"testing"

	"leverage-executor-sol/internal/consts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationValidate(t *testing.T) {
	require.NoError(t, openOp().Validate())

	cases := map[string]func(op *Operation){
		"no wallet":    func(op *Operation) { op.Wallet = [32]byte{} },
		"same mints":   func(op *Operation) { op.DebtMint = op.CollateralMint },
		"zero amount":  func(op *Operation) { op.Amount = 0 },
		"low leverage": func(op *Operation) { op.TargetLeverage = 1 },
		"bad slippage": func(op *Operation) { op.SlippageBps = 20_000 },
		"unknown kind": func(op *Operation) { op.Kind = "liquidate" },
		"no market":    func(op *Operation) { op.Market = [32]byte{} },
	}
	for name, mutate := range cases {
		op := openOp()
		mutate(&op)
		assert.Error(t, op.Validate(), name)
	}

	closeOp := openOp()
	closeOp.Kind, closeOp.Amount, closeOp.TargetLeverage = KindClose, 0, 0
	assert.NoError(t, closeOp.Validate())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("adjust")
	require.NoError(t, err)
	assert.Equal(t, KindAdjust, k)
	_, err = ParseKind("flip")
	assert.Error(t, err)
}

func TestSteps(t *testing.T) {
	op := openOp()
	steps := Steps(op)
	require.Len(t, steps, 5)
	assert.Contains(t, steps[0], "flash_borrow")
	assert.Contains(t, steps[1], consts.WSOLMintStr[:4])

	op.Kind = KindClose
	assert.Len(t, Steps(op), 5)
	op.Kind = KindAdjust
	assert.Len(t, Steps(op), 2)
}
