package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leverage-executor-sol/internal/config"
	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/logic/position"
	"leverage-executor-sol/internal/logic/protocol"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu   sync.Mutex
	ops  []protocol.Operation
	fail map[protocol.Kind]bool
}

func (r *fakeRunner) Execute(_ context.Context, _ types.Account, op protocol.Operation) (*position.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	if r.fail[op.Kind] {
		return nil, errors.New("position operation failed: boom")
	}
	return &position.Report{Kind: op.Kind}, nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

func targets() []config.TargetConfig {
	return []config.TargetConfig{
		{Kind: "open", Market: consts.KaminoMainMarketStr, CollateralMint: consts.JitoSOLMintStr, DebtMint: consts.WSOLMintStr, Amount: 1, TargetLeverage: 2},
		{Kind: "close", Market: consts.KaminoMainMarketStr, CollateralMint: consts.JitoSOLMintStr, DebtMint: consts.WSOLMintStr},
	}
}

func TestRunOnce(t *testing.T) {
	runner := &fakeRunner{fail: map[protocol.Kind]bool{protocol.KindClose: true}}
	signer := types.NewAccount()
	s, err := NewPositionService(runner, signer, config.PositionConfig{Targets: targets()})
	require.NoError(t, err)

	assert.Equal(t, 1, s.RunOnce(context.Background()))
	require.Len(t, runner.ops, 2)
	assert.Equal(t, protocol.KindOpen, runner.ops[0].Kind)
	assert.Equal(t, signer.PublicKey, runner.ops[0].Wallet)
	assert.Equal(t, consts.KaminoMainMarket, runner.ops[1].Market)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, s.RunOnce(ctx))
	assert.Len(t, runner.ops, 2)
}

func TestStartWithoutScheduleRunsOnce(t *testing.T) {
	runner := &fakeRunner{}
	s, err := NewPositionService(runner, types.NewAccount(), config.PositionConfig{Targets: targets()})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()
	require.Eventually(t, func() bool { return runner.count() == 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestScheduledRuns(t *testing.T) {
	runner := &fakeRunner{}
	s, err := NewPositionService(runner, types.NewAccount(), config.PositionConfig{
		Schedule: "* * * * * *",
		Targets:  targets()[:1],
	})
	require.NoError(t, err)

	go s.Start()
	require.Eventually(t, func() bool { return runner.count() >= 1 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewPositionService(&fakeRunner{}, types.NewAccount(), config.PositionConfig{Schedule: "every minute"})
	assert.Error(t, err)

	_, err = NewPositionService(&fakeRunner{}, types.NewAccount(), config.PositionConfig{
		Targets: []config.TargetConfig{{Kind: "hedge"}},
	})
	assert.Error(t, err)
}
