// Package ixjson 在边界处把 sidecar / 聚合器返回的松散 JSON 指令统一转换为内部模型。
//
// 兼容的账户形态：
//
//	{"pubkey": "...", "isSigner": true, "isWritable": false}
//	{"address": "...", "role": "writable_signer"}
//	{"pubkey": "...", "is_signer": true, "is_writable": true}
//
// 指令数据支持 base64 字符串（data / dataBase64）或字节数组。
package ixjson

import (
	"encoding/base64"
	"errors"
	"fmt"

	"leverage-executor-sol/internal/logic/core"
	itypes "leverage-executor-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/tidwall/gjson"
)

// firstOf 返回第一个存在的字段
func firstOf(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func parseKey(r gjson.Result, what string) (common.PublicKey, error) {
	if !r.Exists() || r.String() == "" {
		return common.PublicKey{}, fmt.Errorf("missing %s", what)
	}
	return itypes.TryPubkeyFromBase58(r.String())
}

// ParseAccount 解析单个账户引用
func ParseAccount(r gjson.Result) (core.AccountRef, error) {
	addr, err := parseKey(firstOf(r, "pubkey", "address", "publicKey"), "account address")
	if err != nil {
		return core.AccountRef{}, err
	}
	if role := r.Get("role"); role.Exists() {
		parsed, err := core.ParseAccountRole(role.String())
		if err != nil {
			return core.AccountRef{}, err
		}
		return core.AccountRef{Address: addr, Role: parsed}, nil
	}
	signer := firstOf(r, "isSigner", "is_signer", "signer").Bool()
	writable := firstOf(r, "isWritable", "is_writable", "writable").Bool()
	return core.AccountRef{Address: addr, Role: core.NewAccountRole(signer, writable)}, nil
}

// ParseInstruction 解析单条指令
func ParseInstruction(r gjson.Result) (core.Instruction, error) {
	if !r.IsObject() {
		return core.Instruction{}, errors.New("instruction is not an object")
	}
	program, err := parseKey(firstOf(r, "programId", "program_id", "programAddress"), "program id")
	if err != nil {
		return core.Instruction{}, err
	}

	accountsJSON := r.Get("accounts").Array()
	accounts := make([]core.AccountRef, 0, len(accountsJSON))
	for i, a := range accountsJSON {
		acc, err := ParseAccount(a)
		if err != nil {
			return core.Instruction{}, fmt.Errorf("account %d: %w", i, err)
		}
		accounts = append(accounts, acc)
	}

	data, err := parseData(firstOf(r, "data", "dataBase64"))
	if err != nil {
		return core.Instruction{}, err
	}
	return core.Instruction{ProgramID: program, Accounts: accounts, Data: data}, nil
}

// ParseInstructions 解析指令数组；缺失或 null 时返回空
func ParseInstructions(r gjson.Result) ([]core.Instruction, error) {
	items := r.Array()
	out := make([]core.Instruction, 0, len(items))
	for i, item := range items {
		ix, err := ParseInstruction(item)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		out = append(out, ix)
	}
	return out, nil
}

func parseData(r gjson.Result) ([]byte, error) {
	switch {
	case !r.Exists() || r.Type == gjson.Null:
		return nil, nil
	case r.IsArray():
		items := r.Array()
		out := make([]byte, 0, len(items))
		for _, b := range items {
			v := b.Int()
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("instruction data byte out of range: %d", v)
			}
			out = append(out, byte(v))
		}
		return out, nil
	default:
		out, err := base64.StdEncoding.DecodeString(r.String())
		if err != nil {
			return nil, fmt.Errorf("decode instruction data: %w", err)
		}
		return out, nil
	}
}

// ParsePubkeys 解析地址数组
func ParsePubkeys(r gjson.Result) ([]common.PublicKey, error) {
	items := r.Array()
	strs := make([]string, 0, len(items))
	for _, item := range items {
		strs = append(strs, item.String())
	}
	return itypes.TryPubkeysFromBase58(strs)
}

// ParseObligation 解析 obligation 的 reserve 信息，兼容两种形态：
//
//	{"deposits": [{"depositReserve": "..."}], "borrows": [{"borrowReserve": "..."}]}
//	{"depositReserves": ["..."], "borrowReserves": ["..."]}
//
// 缺失或 null 时返回 (nil, nil)。
func ParseObligation(r gjson.Result) (*core.Obligation, error) {
	if !r.Exists() || r.Type == gjson.Null {
		return nil, nil
	}
	var address common.PublicKey
	if v := firstOf(r, "address", "pubkey", "obligation"); v.Exists() {
		a, err := itypes.TryPubkeyFromBase58(v.String())
		if err != nil {
			return nil, fmt.Errorf("obligation address: %w", err)
		}
		address = a
	}

	deposits, err := reserveList(r, "deposits", "depositReserve", "depositReserves")
	if err != nil {
		return nil, fmt.Errorf("deposits: %w", err)
	}
	borrows, err := reserveList(r, "borrows", "borrowReserve", "borrowReserves")
	if err != nil {
		return nil, fmt.Errorf("borrows: %w", err)
	}
	return core.NewObligation(address, deposits, borrows), nil
}

func reserveList(r gjson.Result, nested, field, flat string) ([]common.PublicKey, error) {
	if list := r.Get(nested); list.IsArray() {
		out := make([]common.PublicKey, 0, len(list.Array()))
		for _, item := range list.Array() {
			v := firstOf(item, field, "reserve")
			if item.Type == gjson.String {
				v = item
			}
			k, err := itypes.TryPubkeyFromBase58(v.String())
			if err != nil {
				return nil, err
			}
			out = append(out, k)
		}
		return out, nil
	}
	return ParsePubkeys(r.Get(flat))
}

// EncodeInstruction 编码为 sidecar 接受的 JSON 形态
func EncodeInstruction(ix core.Instruction) map[string]any {
	accounts := make([]map[string]any, 0, len(ix.Accounts))
	for _, acc := range ix.Accounts {
		accounts = append(accounts, map[string]any{
			"pubkey":     acc.Address.ToBase58(),
			"isSigner":   acc.Role.IsSigner(),
			"isWritable": acc.Role.IsWritable(),
		})
	}
	return map[string]any{
		"programId": ix.ProgramID.ToBase58(),
		"accounts":  accounts,
		"data":      base64.StdEncoding.EncodeToString(ix.Data),
	}
}

func EncodeInstructions(ixs []core.Instruction) []map[string]any {
	out := make([]map[string]any, 0, len(ixs))
	for _, ix := range ixs {
		out = append(out, EncodeInstruction(ix))
	}
	return out
}
