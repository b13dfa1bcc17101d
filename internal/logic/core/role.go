package core

import (
	"fmt"
	"strings"
)

// AccountRole 表示账户在指令中的访问角色。
// 上游（SDK / sidecar）给出的 isSigner/isWritable 或字符串角色，统一在边界处转换为该枚举。
type AccountRole uint8

const (
	RoleReadOnly AccountRole = iota
	RoleWritable
	RoleReadOnlySigner
	RoleWritableSigner
)

// NewAccountRole 由 signer/writable 两个标志位构造角色
func NewAccountRole(isSigner, isWritable bool) AccountRole {
	switch {
	case isSigner && isWritable:
		return RoleWritableSigner
	case isSigner:
		return RoleReadOnlySigner
	case isWritable:
		return RoleWritable
	default:
		return RoleReadOnly
	}
}

// ParseAccountRole 解析字符串形式的角色，大小写与分隔符不敏感，
// 例如 "writable_signer"、"WritableSigner"、"readonly"。
func ParseAccountRole(s string) (AccountRole, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	switch norm {
	case "readonly", "r":
		return RoleReadOnly, nil
	case "writable", "w":
		return RoleWritable, nil
	case "readonlysigner", "rs":
		return RoleReadOnlySigner, nil
	case "writablesigner", "ws":
		return RoleWritableSigner, nil
	default:
		return RoleReadOnly, fmt.Errorf("unknown account role %q", s)
	}
}

func (r AccountRole) IsSigner() bool {
	return r == RoleReadOnlySigner || r == RoleWritableSigner
}

func (r AccountRole) IsWritable() bool {
	return r == RoleWritable || r == RoleWritableSigner
}

// WithoutSigner 去掉 signer 标记，保留读写属性
func (r AccountRole) WithoutSigner() AccountRole {
	switch r {
	case RoleWritableSigner:
		return RoleWritable
	case RoleReadOnlySigner:
		return RoleReadOnly
	default:
		return r
	}
}

// Merge 合并同一地址在交易内的多次引用：任一处 signer 即 signer，任一处 writable 即 writable
func (r AccountRole) Merge(other AccountRole) AccountRole {
	return NewAccountRole(r.IsSigner() || other.IsSigner(), r.IsWritable() || other.IsWritable())
}

func (r AccountRole) String() string {
	switch r {
	case RoleReadOnly:
		return "ReadOnly"
	case RoleWritable:
		return "Writable"
	case RoleReadOnlySigner:
		return "ReadOnlySigner"
	case RoleWritableSigner:
		return "WritableSigner"
	default:
		return fmt.Sprintf("AccountRole(%d)", uint8(r))
	}
}
