package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leverage-executor-sol/internal/logic/core"
	"leverage-executor-sol/internal/logic/ixjson"
	"leverage-executor-sol/internal/logic/swap"
	itypes "leverage-executor-sol/internal/types"
	"leverage-executor-sol/pkg/logger"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/tidwall/gjson"
	"github.com/zeromicro/go-zero/core/jsonx"
)

const maxResponseBytes = 8 << 20

// RemoteOptions sidecar 配置
type RemoteOptions struct {
	Endpoint        string
	Timeout         time.Duration
	MaxSwapAccounts int // 传给报价接口的 maxAccounts，给闪电贷与存借指令留出空间
}

// RemoteLayer 通过 HTTP 调用指令构建 sidecar：
// POST /plan 得到 swap 需求与 obligation，POST /build 得到分批指令。
type RemoteLayer struct {
	opt  RemoteOptions
	http *http.Client
}

func NewRemoteLayer(opt RemoteOptions) (*RemoteLayer, error) {
	if opt.Endpoint == "" {
		return nil, errors.New("protocol sidecar endpoint is empty")
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 15 * time.Second
	}
	opt.Endpoint = strings.TrimRight(opt.Endpoint, "/")
	return &RemoteLayer{opt: opt, http: &http.Client{Timeout: opt.Timeout}}, nil
}

// swapNeed /plan 返回的 swap 需求
type swapNeed struct {
	InputMint  common.PublicKey
	OutputMint common.PublicKey
	Amount     uint64
	Mode       swap.Mode
}

func (l *RemoteLayer) Build(ctx context.Context, op Operation, swapper swap.Provider) ([]Batch, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	planBody, err := l.post(ctx, "/plan", map[string]any{"operation": encodeOperation(op)})
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	plan := gjson.ParseBytes(planBody)
	obligation, err := ixjson.ParseObligation(plan.Get("obligation"))
	if err != nil {
		return nil, fmt.Errorf("plan obligation: %w", err)
	}
	need, err := parseSwapNeed(plan.Get("swap"))
	if err != nil {
		return nil, fmt.Errorf("plan swap: %w", err)
	}

	req := map[string]any{"operation": encodeOperation(op)}
	var route *swap.Instructions
	if need != nil {
		if swapper == nil {
			return nil, errors.New("operation requires a swap but no swap provider is configured")
		}
		quote, err := swapper.Quote(ctx, swap.QuoteRequest{
			InputMint:   need.InputMint,
			OutputMint:  need.OutputMint,
			Amount:      need.Amount,
			SlippageBps: op.SlippageBps,
			Mode:        need.Mode,
			MaxAccounts: l.opt.MaxSwapAccounts,
		})
		if err != nil {
			return nil, fmt.Errorf("swap quote: %w", err)
		}
		route, err = swapper.SwapInstructions(ctx, quote, op.Wallet)
		if err != nil {
			return nil, fmt.Errorf("swap instructions: %w", err)
		}
		logger.Infof("[RemoteLayer] %s swap %s -> %s: in=%d out=%d impact=%.4f%% tables=%d",
			op.ID, itypes.ShortKey(quote.InputMint), itypes.ShortKey(quote.OutputMint),
			quote.InAmount, quote.OutAmount, quote.PriceImpactPct*100, len(route.LookupTables))
		req["swap"] = map[string]any{
			"inAmount":     strconv.FormatUint(quote.InAmount, 10),
			"outAmount":    strconv.FormatUint(quote.OutAmount, 10),
			"minOutAmount": strconv.FormatUint(quote.OtherAmount, 10),
			"instructions": ixjson.EncodeInstructions(route.All()),
		}
	}

	buildBody, err := l.post(ctx, "/build", req)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	batches, err := parseBatches(gjson.ParseBytes(buildBody), obligation)
	if err != nil {
		return nil, err
	}
	if route != nil {
		attachSwapTables(batches, route)
	}
	return batches, nil
}

func encodeOperation(op Operation) map[string]any {
	return map[string]any{
		"id":             op.ID,
		"kind":           string(op.Kind),
		"wallet":         op.Wallet.ToBase58(),
		"market":         op.Market.ToBase58(),
		"collateralMint": op.CollateralMint.ToBase58(),
		"debtMint":       op.DebtMint.ToBase58(),
		"amount":         strconv.FormatUint(op.Amount, 10),
		"leverage":       op.TargetLeverage,
		"slippageBps":    op.SlippageBps,
	}
}

func parseSwapNeed(r gjson.Result) (*swapNeed, error) {
	if !r.IsObject() {
		return nil, nil
	}
	in, err := itypes.TryPubkeyFromBase58(r.Get("inputMint").String())
	if err != nil {
		return nil, fmt.Errorf("inputMint: %w", err)
	}
	out, err := itypes.TryPubkeyFromBase58(r.Get("outputMint").String())
	if err != nil {
		return nil, fmt.Errorf("outputMint: %w", err)
	}
	// amount 可能是字符串或数字
	amount, err := strconv.ParseUint(r.Get("amount").String(), 10, 64)
	if err != nil || amount == 0 {
		return nil, fmt.Errorf("invalid swap amount %q", r.Get("amount").String())
	}
	mode := swap.ModeExactIn
	if strings.EqualFold(r.Get("mode").String(), string(swap.ModeExactOut)) {
		mode = swap.ModeExactOut
	}
	return &swapNeed{InputMint: in, OutputMint: out, Amount: amount, Mode: mode}, nil
}

// parseBatches 解析 /build 响应；批次未携带 obligation 时使用 /plan 返回的 obligation
func parseBatches(r gjson.Result, fallback *core.Obligation) ([]Batch, error) {
	if msg := r.Get("error"); msg.Exists() {
		return nil, fmt.Errorf("build: %s", msg.String())
	}
	if top := r.Get("obligation"); top.Exists() {
		ob, err := ixjson.ParseObligation(top)
		if err != nil {
			return nil, fmt.Errorf("build obligation: %w", err)
		}
		if ob != nil {
			fallback = ob
		}
	}

	items := r.Get("batches").Array()
	if len(items) == 0 {
		return nil, errors.New("build returned no batches")
	}
	batches := make([]Batch, 0, len(items))
	for i, item := range items {
		ixs, err := ixjson.ParseInstructions(item.Get("instructions"))
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		if len(ixs) == 0 {
			return nil, fmt.Errorf("batch %d has no instructions", i)
		}
		tables, err := ixjson.ParsePubkeys(item.Get("lookupTables"))
		if err != nil {
			return nil, fmt.Errorf("batch %d lookupTables: %w", i, err)
		}
		ob, err := ixjson.ParseObligation(item.Get("obligation"))
		if err != nil {
			return nil, fmt.Errorf("batch %d obligation: %w", i, err)
		}
		if ob == nil {
			ob = fallback
		}
		label := item.Get("label").String()
		if label == "" {
			label = "batch-" + strconv.Itoa(i)
		}
		batches = append(batches, Batch{Label: label, Instructions: ixs, LookupTables: tables, Obligation: ob})
	}
	return batches, nil
}

// attachSwapTables 将 swap 路由的 lookup table 加入包含该 swap 指令的批次
func attachSwapTables(batches []Batch, route *swap.Instructions) {
	if len(route.LookupTables) == 0 {
		return
	}
	for i := range batches {
		if !containsProgram(batches[i].Instructions, route.Swap.ProgramID) {
			continue
		}
		seen := make(map[common.PublicKey]struct{}, len(batches[i].LookupTables))
		for _, t := range batches[i].LookupTables {
			seen[t] = struct{}{}
		}
		for _, t := range route.LookupTables {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			batches[i].LookupTables = append(batches[i].LookupTables, t)
		}
	}
}

func containsProgram(ixs []core.Instruction, program common.PublicKey) bool {
	for _, ix := range ixs {
		if ix.ProgramID == program {
			return true
		}
	}
	return false
}

func (l *RemoteLayer) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := jsonx.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.opt.Endpoint+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = string(body)
		}
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, msg)
	}
	return body, nil
}
