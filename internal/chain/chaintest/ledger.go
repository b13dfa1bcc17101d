// Package chaintest 提供内存账本，模拟 RPC 节点与 address lookup table 程序，用于单元测试。
package chaintest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"leverage-executor-sol/internal/consts"
	"leverage-executor-sol/internal/logic/lookuptable"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
)

// address lookup table 程序指令编号
const (
	ixCreateLookupTable     = 0
	ixExtendLookupTable     = 2
	ixDeactivateLookupTable = 3
)

// Ledger 内存账本。所有方法并发安全。
type Ledger struct {
	mu        sync.Mutex
	slot      uint64
	blockhash string
	tables    map[common.PublicKey]*lookuptable.TableAccount
	raw       map[common.PublicKey][]byte

	sent    [][]types.Instruction
	signers []common.PublicKey
	txs     [][]byte

	// FailSend 返回非 nil 时对应的发送失败，账本状态不变
	FailSend func(ixs []types.Instruction) error
	// FailConfirm 返回非 nil 时 SendAndConfirm 失败
	FailConfirm func(raw []byte) error
}

func NewLedger() *Ledger {
	return &Ledger{
		slot:      300_000_000,
		blockhash: "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
		tables:    make(map[common.PublicKey]*lookuptable.TableAccount),
		raw:       make(map[common.PublicKey][]byte),
	}
}

func (l *Ledger) GetSlot(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slot++
	return l.slot, nil
}

func (l *Ledger) LatestBlockhash(_ context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockhash, nil
}

func (l *Ledger) GetAccountsData(_ context.Context, addrs []common.PublicKey) ([][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(addrs))
	for i, a := range addrs {
		if data, ok := l.raw[a]; ok {
			out[i] = data
			continue
		}
		t, ok := l.tables[a]
		if !ok {
			continue
		}
		data, err := lookuptable.EncodeTableAccount(t)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

// SendInstructions 执行 lookup table 程序指令，其他程序的指令只记录不执行
func (l *Ledger) SendInstructions(_ context.Context, signer types.Account, ixs []types.Instruction) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailSend != nil {
		if err := l.FailSend(ixs); err != nil {
			return "", err
		}
	}
	for _, ix := range ixs {
		if ix.ProgramID != consts.AddressLookupTableProgram {
			continue
		}
		if err := l.apply(ix); err != nil {
			return "", err
		}
	}
	l.sent = append(l.sent, ixs)
	l.signers = append(l.signers, signer.PublicKey)
	return l.signature(), nil
}

// SendRaw 记录已序列化的交易
func (l *Ledger) SendRaw(_ context.Context, raw []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(raw) > consts.WireBudget {
		return "", fmt.Errorf("transaction too large: %d > %d", len(raw), consts.WireBudget)
	}
	l.txs = append(l.txs, raw)
	return l.signature(), nil
}

// SendAndConfirm 序列化并记录已签名交易，视为立即确认
func (l *Ledger) SendAndConfirm(ctx context.Context, tx types.Transaction) (string, error) {
	raw, err := tx.Serialize()
	if err != nil {
		return "", err
	}
	if l.FailConfirm != nil {
		if err := l.FailConfirm(raw); err != nil {
			return "", err
		}
	}
	return l.SendRaw(ctx, raw)
}

func (l *Ledger) signature() string {
	var sig [64]byte
	binary.LittleEndian.PutUint64(sig[:], uint64(len(l.sent)+len(l.txs)+1))
	binary.LittleEndian.PutUint64(sig[56:], l.slot)
	return base58.Encode(sig[:])
}

func (l *Ledger) apply(ix types.Instruction) error {
	if len(ix.Data) < 4 || len(ix.Accounts) == 0 {
		return errors.New("malformed lookup table instruction")
	}
	addr := ix.Accounts[0].PubKey
	switch binary.LittleEndian.Uint32(ix.Data[:4]) {
	case ixCreateLookupTable:
		if t, ok := l.tables[addr]; ok && t.Active() {
			return fmt.Errorf("lookup table %s already in use", addr.ToBase58())
		}
		auth := ix.Accounts[1].PubKey
		l.tables[addr] = &lookuptable.TableAccount{Authority: &auth, DeactivationSlot: math.MaxUint64}
	case ixExtendLookupTable:
		t, ok := l.tables[addr]
		if !ok || !t.Active() {
			return fmt.Errorf("lookup table %s not found", addr.ToBase58())
		}
		if len(ix.Data) < 12 {
			return errors.New("malformed extend instruction")
		}
		n := int(binary.LittleEndian.Uint64(ix.Data[4:12]))
		body := ix.Data[12:]
		if len(body) != n*32 {
			return fmt.Errorf("extend payload mismatch: %d addresses, %d bytes", n, len(body))
		}
		if len(t.Addresses)+n > consts.MaxLookupTableAddresses {
			return errors.New("lookup table is full")
		}
		for i := 0; i < n; i++ {
			t.Addresses = append(t.Addresses, common.PublicKeyFromBytes(body[i*32:(i+1)*32]))
		}
		t.LastExtendedSlot = l.slot
	case ixDeactivateLookupTable:
		if t, ok := l.tables[addr]; ok {
			t.DeactivationSlot = l.slot
		}
	default:
		return fmt.Errorf("unsupported lookup table instruction %d", binary.LittleEndian.Uint32(ix.Data[:4]))
	}
	return nil
}

// PutTable 直接写入一张表
func (l *Ledger) PutTable(addr common.PublicKey, members []common.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tables[addr] = &lookuptable.TableAccount{
		DeactivationSlot: math.MaxUint64,
		Addresses:        append([]common.PublicKey(nil), members...),
	}
}

// PutRaw 写入任意账户数据
func (l *Ledger) PutRaw(addr common.PublicKey, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.raw[addr] = data
}

// Deactivate 停用表
func (l *Ledger) Deactivate(addr common.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.tables[addr]; ok {
		t.DeactivationSlot = l.slot
	}
}

// Table 返回表当前成员的拷贝，不存在时 ok 为 false
func (l *Ledger) Table(addr common.PublicKey) ([]common.PublicKey, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tables[addr]
	if !ok {
		return nil, false
	}
	return append([]common.PublicKey(nil), t.Addresses...), true
}

// Sent 返回已成功执行的指令批次
func (l *Ledger) Sent() [][]types.Instruction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]types.Instruction(nil), l.sent...)
}

// RawTransactions 返回通过 SendRaw 广播的交易
func (l *Ledger) RawTransactions() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.txs...)
}
