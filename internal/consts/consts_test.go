package consts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefreshObligationDiscriminator(t *testing.T) {
	// klend IDL 中 refresh_obligation 的判别符
	assert.Equal(t, [8]byte{33, 132, 147, 228, 151, 192, 72, 89}, RefreshObligationDiscriminator)
}

func TestPubkeyConstsInitialized(t *testing.T) {
	assert.Equal(t, KaminoLendProgramStr, KaminoLendProgram.ToBase58())
	assert.Equal(t, AddressLookupTableProgramStr, AddressLookupTableProgram.ToBase58())
	assert.NotEqual(t, WSOLMint, USDCMint)
}
