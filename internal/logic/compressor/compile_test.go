package compressor

import (
	"testing"

	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/logic/core"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) common.PublicKey {
	var k common.PublicKey
	k[0] = b
	k[1] = 0x5C
	k[31] = b ^ 0xFF
	return k
}

func keys(from, to byte) []common.PublicKey {
	out := make([]common.PublicKey, 0, int(to-from)+1)
	for b := from; b <= to; b++ {
		out = append(out, key(b))
	}
	return out
}

func refs(role core.AccountRole, addrs ...common.PublicKey) []core.AccountRef {
	out := make([]core.AccountRef, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, core.AccountRef{Address: a, Role: role})
	}
	return out
}

// writableAt 按 v0 消息规则判断账户索引是否可写
func writableAt(msg types.Message, i int) bool {
	h := msg.Header
	static := len(msg.Accounts)
	if i < static {
		signers := int(h.NumRequireSignatures)
		if i < signers {
			return i < signers-int(h.NumReadonlySignedAccounts)
		}
		return i < static-int(h.NumReadonlyUnsignedAccounts)
	}
	writable := 0
	for _, l := range msg.AddressLookupTables {
		writable += len(l.WritableIndexes)
	}
	return i < static+writable
}

func assertRoundTrip(t *testing.T, d *core.Draft, c *Compiled) {
	t.Helper()
	resolved, err := Resolve(c.Message, c.Tables)
	require.NoError(t, err)
	require.Len(t, c.Message.Instructions, len(d.Instructions))

	for i, ix := range d.Instructions {
		cix := c.Message.Instructions[i]
		assert.Equal(t, ix.ProgramID, resolved[cix.ProgramIDIndex])
		require.Len(t, cix.Accounts, len(ix.Accounts))
		for j, acc := range ix.Accounts {
			idx := cix.Accounts[j]
			assert.Equal(t, acc.Address, resolved[idx], "ix %d account %d", i, j)
			if acc.Role.IsWritable() {
				assert.True(t, writableAt(c.Message, idx), "ix %d account %d should be writable", i, j)
			}
			if acc.Role.IsSigner() {
				assert.Less(t, idx, int(c.Message.Header.NumRequireSignatures))
			}
		}
		assert.Equal(t, ix.Data, cix.Data)
	}
}

func TestCompileWithoutTables(t *testing.T) {
	payer := key(1)
	d := &core.Draft{
		FeePayer:        payer,
		RecentBlockhash: "11111111111111111111111111111111",
		Instructions: []core.Instruction{
			{
				ProgramID: key(200),
				Accounts: append(
					refs(core.RoleWritableSigner, payer),
					append(refs(core.RoleReadOnly, key(10)), refs(core.RoleWritable, key(11))...)...,
				),
				Data: []byte{1},
			},
			{
				ProgramID: key(201),
				Accounts:  append(refs(core.RoleReadOnlySigner, key(2)), refs(core.RoleReadOnly, key(10))...),
				Data:      []byte{2},
			},
		},
	}
	c, err := Compile(d)
	require.NoError(t, err)

	msg := c.Message
	assert.Equal(t, types.MessageVersion(types.MessageVersionV0), msg.Version)
	assert.Equal(t, []common.PublicKey{payer, key(2), key(11), key(10), key(200), key(201)}, msg.Accounts)
	assert.Equal(t, uint8(2), msg.Header.NumRequireSignatures)
	assert.Equal(t, uint8(1), msg.Header.NumReadonlySignedAccounts)
	assert.Equal(t, uint8(3), msg.Header.NumReadonlyUnsignedAccounts)
	assert.Empty(t, msg.AddressLookupTables)
	assert.Equal(t, Stats{StaticKeys: 6, InlineAccounts: 3, TablesUsed: 0}, c.Stats)
	assertRoundTrip(t, d, c)
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile(&core.Draft{FeePayer: key(1)})
	assert.ErrorIs(t, err, ErrNoInstructions)

	var many []common.PublicKey
	for i := 0; i < consts.MaxTransactionAccounts; i++ {
		var k common.PublicKey
		k[0], k[1], k[2] = byte(i), byte(i>>8), 0x77
		many = append(many, k)
	}
	d := &core.Draft{
		FeePayer:     key(1),
		Instructions: []core.Instruction{{ProgramID: key(200), Accounts: refs(core.RoleReadOnly, many...)}},
	}
	_, err = Compile(d)
	assert.ErrorIs(t, err, ErrTooManyAccounts)
}

func TestCompileFullCoverage(t *testing.T) {
	payer := types.NewAccount()
	accounts := keys(10, 19)
	table := core.NewLookupTable(key(100), append(keys(30, 34), accounts...))

	d := &core.Draft{
		FeePayer:        payer.PublicKey,
		RecentBlockhash: "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
		Instructions: []core.Instruction{
			{ProgramID: key(200), Accounts: refs(core.RoleWritable, accounts[:5]...), Data: make([]byte, 40)},
			{ProgramID: key(201), Accounts: refs(core.RoleReadOnly, accounts[5:]...), Data: make([]byte, 40)},
		},
		Tables: []*core.LookupTable{table},
	}
	c, err := Compile(d)
	require.NoError(t, err)

	assert.Equal(t, 0, c.Stats.InlineAccounts)
	assert.Equal(t, 10, c.Stats.LookedUp)
	assert.Equal(t, 1, c.Stats.TablesUsed)
	assert.Equal(t, []common.PublicKey{payer.PublicKey, key(200), key(201)}, c.Message.Accounts)
	require.Len(t, c.Message.AddressLookupTables, 1)
	assert.Equal(t, []uint8{5, 6, 7, 8, 9}, c.Message.AddressLookupTables[0].WritableIndexes)
	assert.Equal(t, []uint8{10, 11, 12, 13, 14}, c.Message.AddressLookupTables[0].ReadonlyIndexes)
	assertRoundTrip(t, d, c)

	_, raw, err := Serialize(c, payer)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(raw), consts.WireBudget)

	est, err := EstimateSize(c)
	require.NoError(t, err)
	assert.Equal(t, len(raw), est)
}

func TestCompileNeverCompressesSignersOrPrograms(t *testing.T) {
	payer := key(1)
	signer := key(2)
	program := key(200)
	table := core.NewLookupTable(key(100), []common.PublicKey{payer, signer, program, key(10)})

	d := &core.Draft{
		FeePayer: payer,
		Instructions: []core.Instruction{{
			ProgramID: program,
			Accounts: append(
				refs(core.RoleWritableSigner, payer, signer),
				refs(core.RoleReadOnly, program, key(10))...,
			),
		}},
		Tables: []*core.LookupTable{table},
	}
	c, err := Compile(d)
	require.NoError(t, err)
	assert.Equal(t, []common.PublicKey{payer, signer, program}, c.Message.Accounts)
	assert.Equal(t, 1, c.Stats.LookedUp)
	assertRoundTrip(t, d, c)

	assert.Empty(t, Uncovered(d))
}

func TestCompileWritableEscalation(t *testing.T) {
	payer := key(1)
	shared := key(10)
	table := core.NewLookupTable(key(100), []common.PublicKey{shared, key(11)})

	d := &core.Draft{
		FeePayer: payer,
		Instructions: []core.Instruction{
			{ProgramID: key(200), Accounts: refs(core.RoleReadOnly, shared, key(11))},
			{ProgramID: key(201), Accounts: refs(core.RoleWritable, shared)},
		},
		Tables: []*core.LookupTable{table},
	}
	c, err := Compile(d)
	require.NoError(t, err)
	require.Len(t, c.Message.AddressLookupTables, 1)
	assert.Equal(t, []uint8{0}, c.Message.AddressLookupTables[0].WritableIndexes)
	assert.Equal(t, []uint8{1}, c.Message.AddressLookupTables[0].ReadonlyIndexes)
	assertRoundTrip(t, d, c)
}

func TestCompilePrefersTableOfSameInstruction(t *testing.T) {
	payer := key(1)
	small := core.NewLookupTable(key(101), []common.PublicKey{key(11)})
	both := core.NewLookupTable(key(102), []common.PublicKey{key(10), key(11)})

	d := &core.Draft{
		FeePayer:     payer,
		Instructions: []core.Instruction{{ProgramID: key(200), Accounts: refs(core.RoleReadOnly, key(10), key(11))}},
		Tables:       []*core.LookupTable{small, both},
	}
	c, err := Compile(d)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Stats.TablesUsed)
	assert.Equal(t, key(102), c.Message.AddressLookupTables[0].AccountKey)
	assertRoundTrip(t, d, c)
}

func TestCompilePrefersWiderCoverage(t *testing.T) {
	payer := key(1)
	narrow := core.NewLookupTable(key(101), []common.PublicKey{key(10)})
	wide := core.NewLookupTable(key(102), []common.PublicKey{key(12), key(11), key(10)})

	d := &core.Draft{
		FeePayer:     payer,
		Instructions: []core.Instruction{{ProgramID: key(200), Accounts: refs(core.RoleReadOnly, key(10), key(11), key(12))}},
		Tables:       []*core.LookupTable{narrow, wide},
	}
	c, err := Compile(d)
	require.NoError(t, err)
	require.Len(t, c.Message.AddressLookupTables, 1)
	assert.Equal(t, key(102), c.Message.AddressLookupTables[0].AccountKey)
	assert.Equal(t, []uint8{2, 1, 0}, c.Message.AddressLookupTables[0].ReadonlyIndexes)
	assertRoundTrip(t, d, c)
}

func TestCompileReusesTableAcrossInstructions(t *testing.T) {
	payer := key(1)
	first := core.NewLookupTable(key(101), []common.PublicKey{key(10), key(11)})
	second := core.NewLookupTable(key(102), []common.PublicKey{key(11)})

	d := &core.Draft{
		FeePayer: payer,
		Instructions: []core.Instruction{
			{ProgramID: key(200), Accounts: refs(core.RoleReadOnly, key(10))},
			{ProgramID: key(200), Accounts: refs(core.RoleReadOnly, key(11))},
		},
		Tables: []*core.LookupTable{second, first},
	}
	c, err := Compile(d)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Stats.TablesUsed)
	assertRoundTrip(t, d, c)
}

func TestExtendingTableNeverIncreasesInline(t *testing.T) {
	payer := key(1)
	accounts := keys(10, 29)
	table := core.NewLookupTable(key(100), accounts[:5])

	d := &core.Draft{
		FeePayer:     payer,
		Instructions: []core.Instruction{{ProgramID: key(200), Accounts: refs(core.RoleWritable, accounts...)}},
		Tables:       []*core.LookupTable{table},
	}
	before, err := Compile(d)
	require.NoError(t, err)

	uncovered := Uncovered(d)
	assert.Equal(t, accounts[5:], uncovered)

	table.Addresses = append(table.Addresses, uncovered[:7]...)
	after, err := Compile(d)
	require.NoError(t, err)

	assert.Less(t, after.Stats.InlineAccounts, before.Stats.InlineAccounts)
	assert.Equal(t, before.Stats.InlineAccounts-7, after.Stats.InlineAccounts)
	assert.Equal(t, accounts[12:], Uncovered(d))
	assertRoundTrip(t, d, after)
}

func TestResolveMissingTable(t *testing.T) {
	msg := types.Message{
		Accounts:            []common.PublicKey{key(1)},
		AddressLookupTables: []types.CompiledAddressLookupTable{{AccountKey: key(100), ReadonlyIndexes: []uint8{0}}},
	}
	_, err := Resolve(msg, nil)
	assert.Error(t, err)

	_, err = Resolve(msg, []*core.LookupTable{core.NewLookupTable(key(100), nil)})
	assert.Error(t, err)
}
