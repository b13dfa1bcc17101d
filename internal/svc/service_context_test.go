package svc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"leverage-executor-sol/internal/config"
	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/logic/protocol"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateOnlyContext(t *testing.T) {
	acc := types.NewAccount()
	keyFile := filepath.Join(t.TempDir(), "key.txt")
	require.NoError(t, os.WriteFile(keyFile, []byte(base58.Encode(acc.PrivateKey)), 0o600))

	c := &config.Config{
		Position: config.PositionConfig{SimulateOnly: true},
		Wallet:   config.WalletConfig{KeyFile: keyFile},
	}
	ctx, err := NewServiceContext(c)
	require.NoError(t, err)
	defer ctx.Close()

	assert.Equal(t, acc.PublicKey, ctx.Signer.PublicKey)
	assert.Nil(t, ctx.Chain)
	assert.Nil(t, ctx.Redis)
	assert.Nil(t, ctx.Producer)

	report, err := ctx.Executor.Close(context.Background(), ctx.Signer, protocol.Operation{
		Market:         consts.KaminoMainMarket,
		CollateralMint: consts.JitoSOLMint,
		DebtMint:       consts.WSOLMint,
	})
	require.NoError(t, err)
	assert.True(t, report.Simulated)
	assert.NotEmpty(t, report.Steps)
}

func TestMissingKeyFile(t *testing.T) {
	_, err := NewServiceContext(&config.Config{
		Position: config.PositionConfig{SimulateOnly: true},
		Wallet:   config.WalletConfig{KeyFile: filepath.Join(t.TempDir(), "none.json")},
	})
	assert.Error(t, err)
}
