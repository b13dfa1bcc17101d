package wallet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/jsonx"
)

func TestLoadKeygenJSON(t *testing.T) {
	acc := types.NewAccount()
	ints := make([]int, 0, len(acc.PrivateKey))
	for _, b := range acc.PrivateKey {
		ints = append(ints, int(b))
	}
	data, err := jsonx.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, acc.PublicKey, got.PublicKey)
}

func TestParseBase58(t *testing.T) {
	acc := types.NewAccount()
	got, err := Parse([]byte(base58.Encode(acc.PrivateKey) + "\n"))
	require.NoError(t, err)
	assert.Equal(t, acc.PublicKey, got.PublicKey)
}

func TestParseInvalid(t *testing.T) {
	for name, in := range map[string]string{
		"empty":      "  ",
		"short":      "[1,2,3]",
		"range":      "[256" + strings.Repeat(",1", 63) + "]",
		"bad json":   "[1,2",
		"bad base58": "0OIl",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
