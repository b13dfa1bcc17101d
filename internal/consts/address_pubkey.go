package consts

import (
	"leverage-executor-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
)

// 公钥形式的地址常量（common.PublicKey），用于链上比对等场景。
var (
	// Programs
	SystemProgram             common.PublicKey
	TokenProgram              common.PublicKey
	TokenProgram2022          common.PublicKey
	AssociatedTokenProgram    common.PublicKey
	ComputeBudgetProgram      common.PublicKey
	AddressLookupTableProgram common.PublicKey

	// Lending
	KaminoLendProgram  common.PublicKey
	KaminoMainMarket   common.PublicKey
	KaminoFarmsProgram common.PublicKey

	// Swap
	JupiterV6Program common.PublicKey

	// Mints
	WSOLMint    common.PublicKey
	USDCMint    common.PublicKey
	USDTMint    common.PublicKey
	JitoSOLMint common.PublicKey
	MSOLMint    common.PublicKey
	JupSOLMint  common.PublicKey
)

// init 自动将 base58 字符串地址转换为 common.PublicKey
func init() {
	SystemProgram = types.PubkeyFromBase58(SystemProgramStr)
	TokenProgram = types.PubkeyFromBase58(TokenProgramStr)
	TokenProgram2022 = types.PubkeyFromBase58(TokenProgram2022Str)
	AssociatedTokenProgram = types.PubkeyFromBase58(AssociatedTokenProgramStr)
	ComputeBudgetProgram = types.PubkeyFromBase58(ComputeBudgetProgramIdStr)
	AddressLookupTableProgram = types.PubkeyFromBase58(AddressLookupTableProgramStr)

	KaminoLendProgram = types.PubkeyFromBase58(KaminoLendProgramStr)
	KaminoMainMarket = types.PubkeyFromBase58(KaminoMainMarketStr)
	KaminoFarmsProgram = types.PubkeyFromBase58(KaminoFarmsProgramStr)

	JupiterV6Program = types.PubkeyFromBase58(JupiterV6ProgramStr)

	WSOLMint = types.PubkeyFromBase58(WSOLMintStr)
	USDCMint = types.PubkeyFromBase58(USDCMintStr)
	USDTMint = types.PubkeyFromBase58(USDTMintStr)
	JitoSOLMint = types.PubkeyFromBase58(JitoSOLMintStr)
	MSOLMint = types.PubkeyFromBase58(MSOLMintStr)
	JupSOLMint = types.PubkeyFromBase58(JupSOLMintStr)
}
