package consts

import "crypto/sha256"

const (
	// WireBudget 单笔交易序列化后的最大字节数（IPv6 MTU 1280 - 48 字节头）
	WireBudget = 1232

	// MaxLookupTableAddresses 单张 lookup table 可容纳的地址上限（索引为 u8）
	MaxLookupTableAddresses = 256

	// ExtendChunkSize 单笔 extend 交易追加的地址数，超过容易撑爆 WireBudget
	ExtendChunkSize = 20

	// LookupTableMetaSize lookup table 账户头部长度，地址列表从该偏移开始
	LookupTableMetaSize = 56

	// MaxTransactionAccounts v0 消息中账户索引为 u8
	MaxTransactionAccounts = 256

	// SignatureLength ed25519 签名长度
	SignatureLength = 64
)

// RefreshObligationDiscriminator Anchor 指令判别符：sha256("global:refresh_obligation")[:8]
var RefreshObligationDiscriminator = anchorDiscriminator("refresh_obligation")

func anchorDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}
