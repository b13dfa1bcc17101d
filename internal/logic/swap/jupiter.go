package swap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leverage-executor-sol/internal/logic/core"
	"leverage-executor-sol/internal/logic/ixjson"
	itypes "leverage-executor-sol/internal/types"
	"leverage-executor-sol/pkg/logger"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/tidwall/gjson"
)

// 响应体读取上限
const maxResponseBytes = 4 << 20

// JupiterClient 基于 Jupiter v6 quote / swap-instructions 接口的 Provider 实现
type JupiterClient struct {
	baseURL string
	http    *http.Client
}

func NewJupiterClient(baseURL string, timeout time.Duration) *JupiterClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &JupiterClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (j *JupiterClient) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.Amount == 0 {
		return nil, errors.New("quote amount is zero")
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeExactIn
	}
	q := url.Values{}
	q.Set("inputMint", req.InputMint.ToBase58())
	q.Set("outputMint", req.OutputMint.ToBase58())
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	q.Set("swapMode", string(mode))
	if req.MaxAccounts > 0 {
		q.Set("maxAccounts", strconv.Itoa(req.MaxAccounts))
	}

	body, err := j.do(ctx, http.MethodGet, j.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("jupiter quote: %w", err)
	}
	return parseQuote(body)
}

func parseQuote(body []byte) (*Quote, error) {
	r := gjson.ParseBytes(body)
	if msg := r.Get("error"); msg.Exists() {
		return nil, fmt.Errorf("jupiter quote: %s", msg.String())
	}
	in, err := itypes.TryPubkeyFromBase58(r.Get("inputMint").String())
	if err != nil {
		return nil, fmt.Errorf("quote inputMint: %w", err)
	}
	out, err := itypes.TryPubkeyFromBase58(r.Get("outputMint").String())
	if err != nil {
		return nil, fmt.Errorf("quote outputMint: %w", err)
	}
	inAmount, err := strconv.ParseUint(r.Get("inAmount").String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("quote inAmount: %w", err)
	}
	outAmount, err := strconv.ParseUint(r.Get("outAmount").String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("quote outAmount: %w", err)
	}
	threshold, _ := strconv.ParseUint(r.Get("otherAmountThreshold").String(), 10, 64)
	return &Quote{
		InputMint:      in,
		OutputMint:     out,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		OtherAmount:    threshold,
		PriceImpactPct: r.Get("priceImpactPct").Float(),
		Raw:            body,
	}, nil
}

func (j *JupiterClient) SwapInstructions(ctx context.Context, quote *Quote, user common.PublicKey) (*Instructions, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, errors.New("swap instructions require a raw quote")
	}
	payload := fmt.Sprintf(`{"quoteResponse":%s,"userPublicKey":%q,"wrapAndUnwrapSol":true,"dynamicComputeUnitLimit":false}`,
		quote.Raw, user.ToBase58())

	body, err := j.do(ctx, http.MethodPost, j.baseURL+"/swap-instructions", []byte(payload))
	if err != nil {
		return nil, fmt.Errorf("jupiter swap-instructions: %w", err)
	}
	return parseSwapInstructions(body)
}

// parseSwapInstructions 计算预算指令由交易构建引擎按配置统一追加，这里丢弃聚合器返回的 computeBudgetInstructions
func parseSwapInstructions(body []byte) (*Instructions, error) {
	r := gjson.ParseBytes(body)
	if msg := r.Get("error"); msg.Exists() {
		return nil, fmt.Errorf("jupiter swap-instructions: %s", msg.String())
	}
	if dropped := len(r.Get("computeBudgetInstructions").Array()); dropped > 0 {
		logger.Debugf("[Jupiter] 忽略 %d 条 compute budget 指令", dropped)
	}

	setup, err := ixjson.ParseInstructions(r.Get("setupInstructions"))
	if err != nil {
		return nil, fmt.Errorf("setupInstructions: %w", err)
	}
	swapIx, err := ixjson.ParseInstruction(r.Get("swapInstruction"))
	if err != nil {
		return nil, fmt.Errorf("swapInstruction: %w", err)
	}
	var cleanupIxs []core.Instruction
	if cleanup := r.Get("cleanupInstruction"); cleanup.IsObject() {
		ix, err := ixjson.ParseInstruction(cleanup)
		if err != nil {
			return nil, fmt.Errorf("cleanupInstruction: %w", err)
		}
		cleanupIxs = append(cleanupIxs, ix)
	}
	tables, err := ixjson.ParsePubkeys(r.Get("addressLookupTableAddresses"))
	if err != nil {
		return nil, fmt.Errorf("addressLookupTableAddresses: %w", err)
	}
	return &Instructions{Setup: setup, Swap: swapIx, Cleanup: cleanupIxs, LookupTables: tables}, nil
}

func (j *JupiterClient) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := j.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
