package lookuptable

import (
	"errors"
	"fmt"
	"math"

	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/logic/core"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/near/borsh-go"
)

var errNotLookupTable = errors.New("account is not an address lookup table")

const (
	lookupTableDiscriminator = 1 // 链上 LookupTable 账户的类型标记
	addressLength            = 32
)

// tableHeader 链上 lookup table 账户的 56 字节头部
type tableHeader struct {
	Discriminator          uint32
	DeactivationSlot       uint64
	LastExtendedSlot       uint64
	LastExtendedStartIndex uint8
	HasAuthority           uint8
	Authority              [32]byte
	Padding                [2]byte
}

// TableAccount 解析后的 lookup table 账户
type TableAccount struct {
	Authority        *common.PublicKey
	DeactivationSlot uint64
	LastExtendedSlot uint64
	Addresses        []common.PublicKey
}

// Active 未停用（deactivation slot 为 u64 最大值）
func (a *TableAccount) Active() bool {
	return a.DeactivationSlot == math.MaxUint64
}

// DecodeTableAccount 解析账户数据：头部用 borsh 解码，其后按 32 字节切分成员
func DecodeTableAccount(data []byte) (*TableAccount, error) {
	if len(data) < consts.LookupTableMetaSize {
		return nil, fmt.Errorf("%w: data length %d", errNotLookupTable, len(data))
	}
	var h tableHeader
	if err := borsh.Deserialize(&h, data[:consts.LookupTableMetaSize]); err != nil {
		return nil, fmt.Errorf("decode lookup table header: %w", err)
	}
	if h.Discriminator != lookupTableDiscriminator {
		return nil, fmt.Errorf("%w: discriminator %d", errNotLookupTable, h.Discriminator)
	}

	body := data[consts.LookupTableMetaSize:]
	if len(body)%addressLength != 0 {
		return nil, fmt.Errorf("%w: trailing %d bytes", errNotLookupTable, len(body)%addressLength)
	}
	addrs := make([]common.PublicKey, 0, len(body)/addressLength)
	for i := 0; i < len(body); i += addressLength {
		addrs = append(addrs, common.PublicKeyFromBytes(body[i:i+addressLength]))
	}

	acc := &TableAccount{
		DeactivationSlot: h.DeactivationSlot,
		LastExtendedSlot: h.LastExtendedSlot,
		Addresses:        addrs,
	}
	if h.HasAuthority != 0 {
		auth := common.PublicKey(h.Authority)
		acc.Authority = &auth
	}
	return acc, nil
}

// EncodeTableAccount 按链上布局编码，供测试与本地模拟使用
func EncodeTableAccount(acc *TableAccount) ([]byte, error) {
	h := tableHeader{
		Discriminator:    lookupTableDiscriminator,
		DeactivationSlot: acc.DeactivationSlot,
		LastExtendedSlot: acc.LastExtendedSlot,
	}
	if acc.Authority != nil {
		h.HasAuthority = 1
		h.Authority = *acc.Authority
	}
	head, err := borsh.Serialize(h)
	if err != nil {
		return nil, fmt.Errorf("encode lookup table header: %w", err)
	}
	out := make([]byte, 0, len(head)+len(acc.Addresses)*addressLength)
	out = append(out, head...)
	for _, a := range acc.Addresses {
		out = append(out, a[:]...)
	}
	return out, nil
}

// ToLookupTable 转为编译器使用的快照
func (a *TableAccount) ToLookupTable(address common.PublicKey) *core.LookupTable {
	return core.NewLookupTable(address, a.Addresses)
}
