package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/metrics"
	"leverage-executor-sol/pkg/logger"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// getMultipleAccounts 单次请求的账户数上限
const maxAccountsPerRequest = 100

// Options RPC 客户端配置
type Options struct {
	Endpoint       string
	RateLimit      float64       // 每秒请求数，<=0 表示不限速
	Burst          int           // 令牌桶容量
	MaxRetries     uint64        // 瞬时错误最大重试次数
	ConfirmTimeout time.Duration // 等待确认的超时
	PollInterval   time.Duration // 查询签名状态的间隔
}

func (o *Options) setDefaults() {
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = 60 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
}

// Client 封装 Solana RPC：限速、瞬时错误指数退避重试、交易确认轮询
type Client struct {
	rpc     *client.Client
	limiter *rate.Limiter
	opt     Options
}

func NewClient(opt Options) (*Client, error) {
	if opt.Endpoint == "" {
		return nil, errors.New("rpc endpoint is empty")
	}
	opt.setDefaults()
	limit := rate.Inf
	if opt.RateLimit > 0 {
		limit = rate.Limit(opt.RateLimit)
	}
	c := client.NewClient(opt.Endpoint)
	if c == nil {
		return nil, errors.New("rpc client init failed")
	}
	return &Client{
		rpc:     c,
		limiter: rate.NewLimiter(limit, opt.Burst),
		opt:     opt,
	}, nil
}

// call 统一的调用入口：限速 → 执行 → 瞬时错误退避重试
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.opt.MaxRetries),
		ctx,
	)
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := fn()
		metrics.ObserveRPC(method, err)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		logger.Warnf("[RpcClient] %s 第 %d 次调用失败，准备重试: %v", method, attempt, err)
		return err
	}, policy)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	err := c.call(ctx, "getSlot", func() (err error) {
		slot, err = c.rpc.GetSlot(ctx)
		return err
	})
	return slot, err
}

func (c *Client) LatestBlockhash(ctx context.Context) (string, error) {
	var hash string
	err := c.call(ctx, "getLatestBlockhash", func() error {
		res, err := c.rpc.GetLatestBlockhash(ctx)
		if err != nil {
			return err
		}
		hash = res.Blockhash
		return nil
	})
	return hash, err
}

// GetAccountsData 批量读取账户数据，结果与 addrs 一一对应，不存在的账户为 nil
func (c *Client) GetAccountsData(ctx context.Context, addrs []common.PublicKey) ([][]byte, error) {
	out := make([][]byte, 0, len(addrs))
	for _, batch := range batchKeys(addrs, maxAccountsPerRequest) {
		var infos []client.AccountInfo
		err := c.call(ctx, "getMultipleAccounts", func() (err error) {
			infos, err = c.rpc.GetMultipleAccounts(ctx, batch)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(infos) != len(batch) {
			return nil, fmt.Errorf("返回账户数与请求不一致: got=%d want=%d", len(infos), len(batch))
		}
		for _, info := range infos {
			out = append(out, info.Data)
		}
	}
	return out, nil
}

// SendTransaction 广播已签名交易，返回签名
func (c *Client) SendTransaction(ctx context.Context, tx types.Transaction) (string, error) {
	var sig string
	err := c.call(ctx, "sendTransaction", func() (err error) {
		sig, err = c.rpc.SendTransaction(ctx, tx)
		return err
	})
	return sig, err
}

// WaitConfirmed 轮询签名状态直到 confirmed / finalized
func (c *Client) WaitConfirmed(ctx context.Context, sig string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opt.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.opt.PollInterval)
	defer ticker.Stop()
	for {
		status, err := c.rpc.GetSignatureStatus(ctx, sig)
		metrics.ObserveRPC("getSignatureStatus", err)
		if err != nil && !IsTransient(err) {
			return fmt.Errorf("getSignatureStatus: %w", err)
		}
		if done, err := confirmationDone(status); done {
			return err
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrConfirmTimeout, sig)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// confirmationDone 解析签名状态：执行失败或达到 confirmed 即结束
func confirmationDone(status *rpc.SignatureStatus) (bool, error) {
	if status == nil {
		return false, nil
	}
	if status.Err != nil {
		return true, fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
	}
	if status.ConfirmationStatus == nil {
		return false, nil
	}
	switch *status.ConfirmationStatus {
	case rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
		return true, nil
	default:
		return false, nil
	}
}

// SendAndConfirm 广播并等待确认
func (c *Client) SendAndConfirm(ctx context.Context, tx types.Transaction) (string, error) {
	sig, err := c.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}
	if err := c.WaitConfirmed(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// SendInstructions 以 signer 作为 fee payer 组装 legacy 交易，签名、广播并等待确认。
// 用于建表 / 扩表等不需要 lookup table 压缩的小交易。
func (c *Client) SendInstructions(ctx context.Context, signer types.Account, ixs []types.Instruction) (string, error) {
	blockhash, err := c.LatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	tx, err := types.NewTransaction(types.NewTransactionParam{
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        signer.PublicKey,
			RecentBlockhash: blockhash,
			Instructions:    ixs,
		}),
		Signers: []types.Account{signer},
	})
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	raw, err := tx.Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize transaction: %w", err)
	}
	if len(raw) > consts.WireBudget {
		return "", fmt.Errorf("transaction too large: %d > %d", len(raw), consts.WireBudget)
	}
	return c.SendAndConfirm(ctx, tx)
}

func batchKeys(addrs []common.PublicKey, size int) [][]string {
	out := make([][]string, 0, (len(addrs)+size-1)/size)
	for start := 0; start < len(addrs); start += size {
		end := start + size
		if end > len(addrs) {
			end = len(addrs)
		}
		batch := make([]string, 0, end-start)
		for _, a := range addrs[start:end] {
			batch = append(batch, a.ToBase58())
		}
		out = append(out, batch)
	}
	return out
}
