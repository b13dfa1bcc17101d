package types

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/mr-tron/base58"
)

const pubkeyLength = 32

// TryPubkeyFromBase58 解析 base58 字符串为 PublicKey，失败时返回 error（用于不信任输入路径，如配置、sidecar 响应）。
// common.PublicKeyFromString 对非法输入静默返回零值，这里显式校验长度。
func TryPubkeyFromBase58(s string) (common.PublicKey, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("failed to decode base58 pubkey %q: %w", s, err)
	}
	if len(data) != pubkeyLength {
		return common.PublicKey{}, fmt.Errorf("invalid pubkey length: got %d, want %d, input=%q", len(data), pubkeyLength, s)
	}
	return common.PublicKeyFromBytes(data), nil
}

// PubkeyFromBase58 用于常量初始化，解析失败直接 panic
func PubkeyFromBase58(s string) common.PublicKey {
	p, err := TryPubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return p
}

func PubkeysFromBase58(strs []string) []common.PublicKey {
	result := make([]common.PublicKey, 0, len(strs))
	for _, s := range strs {
		result = append(result, PubkeyFromBase58(s))
	}
	return result
}

// TryPubkeysFromBase58 批量解析，遇到第一个非法地址即返回错误
func TryPubkeysFromBase58(strs []string) ([]common.PublicKey, error) {
	result := make([]common.PublicKey, 0, len(strs))
	for i, s := range strs {
		p, err := TryPubkeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		result = append(result, p)
	}
	return result, nil
}

// ShortKey 返回地址的缩写形式，仅用于日志
func ShortKey(p common.PublicKey) string {
	s := p.ToBase58()
	if len(s) <= 10 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}
