package chain

import (
	"context"
	"errors"
	"net"
	"strings"
)

var (
	// ErrTransactionFailed 交易已上链但执行失败
	ErrTransactionFailed = errors.New("transaction failed on chain")
	// ErrConfirmTimeout 在超时时间内未观察到确认
	ErrConfirmTimeout = errors.New("transaction confirmation timed out")
)

// IsTransient 判断 RPC 错误是否可重试（网络抖动、限流、节点暂时不可用）
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrTransactionFailed) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, terminalMessageTokens) {
		return false
	}
	return containsAny(lower, transientMessageTokens)
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"eof",
	"too many requests",
	"rate limit",
	"429",
	"502",
	"503",
	"504",
	"node is behind",
	"node is unhealthy",
	"blockhash not found",
}

var terminalMessageTokens = []string{
	"invalid params",
	"invalid argument",
	"method not found",
	"parse error",
	"insufficient funds",
	"custom program error",
	"signature verification failure",
	"too large",
}
