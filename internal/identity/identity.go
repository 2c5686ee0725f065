// Package identity defines the canonical owner identity used across the
// payment engine. Every external identifier is converted into a UserID at
// the system boundary exactly once, so store lookups never have to guess
// between numeric and string forms of the same user.
package identity

import (
	"context"
	"strconv"
	"strings"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

// UserID 是系统内唯一的用户身份表示，底层为规范化字符串。
type UserID string

// Zero 表示未知身份。
const Zero UserID = ""

// FromInt64 由数值型的外部用户编号构造规范身份。
func FromInt64(id int64) UserID {
	return UserID(strconv.FormatInt(id, 10))
}

// FromHandle 由用户名构造临时身份，用于从未联系过系统、
// 因而还没有数值编号的收款方。带 @ 前缀以和数值身份区分。
func FromHandle(h Handle) UserID {
	if h == "" {
		return Zero
	}
	return UserID(h.Display())
}

// Parse 校验并规范化外部传入的身份字符串。
func Parse(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Zero, xerrors.New(xerrors.CodeInvalidArgument, "用户身份不能为空")
	}
	return UserID(trimmed), nil
}

// String 返回规范化字符串。
func (u UserID) String() string { return string(u) }

// IsZero 判断身份是否缺失。
func (u UserID) IsZero() bool { return u == Zero }

// Handle 是对外可见的用户名（如 Telegram 用户名），匹配时不区分大小写。
type Handle string

// NormalizeHandle 去除前缀 @ 并统一为小写。
func NormalizeHandle(raw string) Handle {
	return Handle(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "@")))
}

// String 返回规范化后的用户名。
func (h Handle) String() string { return string(h) }

// Display 返回带 @ 前缀的展示形式。
func (h Handle) Display() string {
	if h == "" {
		return ""
	}
	return "@" + string(h)
}

// Equal 按规范化规则比较两个用户名。
func (h Handle) Equal(other Handle) bool {
	return strings.EqualFold(string(h), string(other))
}

// ErrHandleNotFound 表示用户名尚未与任何身份建立映射。
var ErrHandleNotFound = xerrors.New(xerrors.CodeNotFound, "handle not mapped to an identity")

// Directory 维护用户名到规范身份的映射，解析不区分大小写。
type Directory interface {
	// Resolve 将外部用户名解析为规范身份。
	Resolve(ctx context.Context, handle Handle) (UserID, error)
	// Record 登记或刷新用户名与身份的映射。
	Record(ctx context.Context, handle Handle, owner UserID) error
}
