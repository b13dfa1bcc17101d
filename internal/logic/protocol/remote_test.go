package protocol

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/logic/core"
	"leverage-executor-sol/internal/logic/swap"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeSwapper struct {
	quotes []swap.QuoteRequest
}

func (f *fakeSwapper) Quote(_ context.Context, req swap.QuoteRequest) (*swap.Quote, error) {
	f.quotes = append(f.quotes, req)
	return &swap.Quote{InputMint: req.InputMint, OutputMint: req.OutputMint, InAmount: req.Amount, OutAmount: 42, OtherAmount: 40, Raw: []byte(`{}`)}, nil
}

func (f *fakeSwapper) SwapInstructions(_ context.Context, _ *swap.Quote, _ common.PublicKey) (*swap.Instructions, error) {
	return &swap.Instructions{
		Swap:         core.Instruction{ProgramID: consts.JupiterV6Program, Data: []byte{1}},
		LookupTables: []common.PublicKey{consts.USDTMint, consts.MSOLMint},
	}, nil
}

func openOp() Operation {
	return Operation{
		ID:             "op-1",
		Kind:           KindOpen,
		Wallet:         consts.KaminoMainMarket,
		Market:         consts.KaminoMainMarket,
		CollateralMint: consts.JitoSOLMint,
		DebtMint:       consts.WSOLMint,
		Amount:         1_000_000_000,
		TargetLeverage: 3,
		SlippageBps:    30,
	}
}

func sidecar(t *testing.T, plan, build string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req := gjson.ParseBytes(body)
		assert.Equal(t, "open", req.Get("operation.kind").String())
		switch r.URL.Path {
		case "/plan":
			_, _ = io.WriteString(w, plan)
		case "/build":
			assert.Equal(t, "42", req.Get("swap.outAmount").String())
			assert.Equal(t, consts.JupiterV6ProgramStr, req.Get("swap.instructions.0.programId").String())
			_, _ = io.WriteString(w, build)
		default:
			http.NotFound(w, r)
		}
	}))
}

const planBody = `{
	"swap": {"inputMint": "` + consts.WSOLMintStr + `", "outputMint": "` + consts.JitoSOLMintStr + `", "amount": "2000000000", "mode": "ExactIn"},
	"obligation": {
		"address": "` + consts.KaminoMainMarketStr + `",
		"deposits": [{"depositReserve": "` + consts.USDCMintStr + `"}],
		"borrows": [{"borrowReserve": "` + consts.USDTMintStr + `"}, {"borrowReserve": "` + consts.MSOLMintStr + `"}]
	}
}`

const buildBody = `{
	"batches": [
		{
			"label": "setup",
			"instructions": [{"programId": "` + consts.SystemProgramStr + `", "accounts": [], "data": ""}]
		},
		{
			"label": "leverage",
			"instructions": [
				{"programId": "` + consts.KaminoLendProgramStr + `", "accounts": [{"address": "` + consts.USDCMintStr + `", "role": "writable"}], "data": "AQ=="},
				{"programId": "` + consts.JupiterV6ProgramStr + `", "accounts": [], "data": "AQ=="}
			],
			"lookupTables": ["` + consts.USDTMintStr + `"],
			"obligation": {"depositReserves": ["` + consts.USDCMintStr + `"], "borrowReserves": []}
		}
	]
}`

func TestRemoteLayerBuild(t *testing.T) {
	srv := sidecar(t, planBody, buildBody)
	defer srv.Close()

	layer, err := NewRemoteLayer(RemoteOptions{Endpoint: srv.URL + "/", MaxSwapAccounts: 32})
	require.NoError(t, err)

	swapper := &fakeSwapper{}
	batches, err := layer.Build(context.Background(), openOp(), swapper)
	require.NoError(t, err)

	require.Len(t, swapper.quotes, 1)
	assert.Equal(t, uint64(2_000_000_000), swapper.quotes[0].Amount)
	assert.Equal(t, 32, swapper.quotes[0].MaxAccounts)
	assert.Equal(t, 30, swapper.quotes[0].SlippageBps)

	require.Len(t, batches, 2)
	assert.Equal(t, "setup", batches[0].Label)
	assert.Empty(t, batches[0].LookupTables)
	// 第一批未携带 obligation，使用 /plan 的结果
	require.NotNil(t, batches[0].Obligation)
	assert.Len(t, batches[0].Obligation.DistinctReserves(), 3)

	assert.Equal(t, []common.PublicKey{consts.USDTMint, consts.MSOLMint}, batches[1].LookupTables)
	assert.Equal(t, []common.PublicKey{consts.USDCMint}, batches[1].Obligation.DepositReserves)
	assert.Equal(t, core.RoleWritable, batches[1].Instructions[0].Accounts[0].Role)
}

func TestRemoteLayerRequiresSwapper(t *testing.T) {
	srv := sidecar(t, planBody, buildBody)
	defer srv.Close()

	layer, err := NewRemoteLayer(RemoteOptions{Endpoint: srv.URL})
	require.NoError(t, err)
	_, err = layer.Build(context.Background(), openOp(), nil)
	assert.Error(t, err)
}

func TestRemoteLayerSidecarError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error": "reserve is stale"}`)
	}))
	defer srv.Close()

	layer, err := NewRemoteLayer(RemoteOptions{Endpoint: srv.URL})
	require.NoError(t, err)
	_, err = layer.Build(context.Background(), openOp(), &fakeSwapper{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserve is stale")
	assert.NotContains(t, err.Error(), "{")
}

func TestParseBatchesRejectsEmpty(t *testing.T) {
	_, err := parseBatches(gjson.Parse(`{"batches": []}`), nil)
	assert.Error(t, err)

	_, err = parseBatches(gjson.Parse(`{"batches": [{"instructions": []}]}`), nil)
	assert.Error(t, err)

	batches, err := parseBatches(gjson.Parse(`{"batches": [{"instructions": [{"programId": "`+consts.SystemProgramStr+`"}]}]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "batch-0", batches[0].Label)
	assert.Nil(t, batches[0].Obligation)
}

func TestNewRemoteLayerRequiresEndpoint(t *testing.T) {
	_, err := NewRemoteLayer(RemoteOptions{})
	assert.Error(t, err)
}
