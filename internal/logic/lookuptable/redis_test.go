package lookuptable

import (
	"context"
	"testing"

	"leverage-executor-sol/internal/consts"
	itypes "leverage-executor-sol/internal/types"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisKey(t *testing.T) {
	owner := itypes.PubkeyFromBase58(consts.KaminoMainMarketStr)
	assert.Equal(t, "leverage:lut:"+consts.KaminoMainMarketStr, NewRedisMetaStore(nil, "").getKey(owner))
	assert.Equal(t, "custom:"+consts.KaminoMainMarketStr, NewRedisMetaStore(nil, "custom").getKey(owner))
}

func TestMetaHashFields(t *testing.T) {
	owner := types.NewAccount().PublicKey
	meta := &Meta{Owner: owner, Table: types.NewAccount().PublicKey, CreatedSlot: 321, UpdatedAt: 1700000000}

	fields := map[string]string{}
	for k, v := range encodeMeta(meta) {
		fields[k] = v.(string)
	}
	got, err := decodeMeta(owner, fields)
	require.NoError(t, err)
	assert.Equal(t, meta, got)

	empty, err := decodeMeta(owner, map[string]string{})
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = decodeMeta(owner, map[string]string{fieldTable: "not-a-key"})
	assert.Error(t, err)

	_, err = decodeMeta(owner, map[string]string{fieldTable: meta.Table.ToBase58(), fieldCreatedSlot: "x"})
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner := types.NewAccount().PublicKey

	m, err := s.Load(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, s.Save(ctx, &Meta{Owner: owner, CreatedSlot: 5}))
	m, err = s.Load(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), m.CreatedSlot)

	require.NoError(t, s.Delete(ctx, owner))
	m, err = s.Load(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, m)
}
