// Package wallet 加载签名密钥
package wallet

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"github.com/zeromicro/go-zero/core/jsonx"
)

const privateKeyLength = 64

var ErrInvalidKey = errors.New("invalid private key")

// Load 读取密钥文件：solana-keygen 生成的 JSON 字节数组，或单行 base58 私钥
func Load(path string) (types.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Account{}, fmt.Errorf("read key file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析密钥内容，格式同 Load
func Parse(data []byte) (types.Account, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return types.Account{}, fmt.Errorf("%w: empty", ErrInvalidKey)
	}

	var raw []byte
	if strings.HasPrefix(text, "[") {
		var ints []int
		if err := jsonx.Unmarshal([]byte(text), &ints); err != nil {
			return types.Account{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		raw = make([]byte, 0, len(ints))
		for _, v := range ints {
			if v < 0 || v > 255 {
				return types.Account{}, fmt.Errorf("%w: byte out of range %d", ErrInvalidKey, v)
			}
			raw = append(raw, byte(v))
		}
	} else {
		decoded, err := base58.Decode(text)
		if err != nil {
			return types.Account{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		raw = decoded
	}

	if len(raw) != privateKeyLength {
		return types.Account{}, fmt.Errorf("%w: length %d", ErrInvalidKey, len(raw))
	}
	acc, err := types.AccountFromBytes(raw)
	if err != nil {
		return types.Account{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return acc, nil
}
