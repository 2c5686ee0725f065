package payment

import (
	"math/big"
	"time"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/schedule"
)

const (
	CodeValidation        xerrors.Code = "PAYMENT_VALIDATION_FAILED"
	CodeInsufficientFunds xerrors.Code = "INSUFFICIENT_FUNDS"
	CodeNotFound          xerrors.Code = "PAYMENT_NOT_FOUND"
	CodeConflict          xerrors.Code = "PAYMENT_CONFLICT"
)

func init() {
	xerrors.Register(CodeValidation, xerrors.Attributes{
		Message:   "payment validation failed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeInsufficientFunds, xerrors.Attributes{
		Message:   "insufficient funds",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeNotFound, xerrors.Attributes{
		Message:   "payment not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeConflict, xerrors.Attributes{
		Message:   "payment conflict",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}

var (
	// ErrNotFound 表示指定的支付记录不存在。
	ErrNotFound = xerrors.New(CodeNotFound, "payment not found")
	// ErrConflict 表示记录 ID 已存在。
	ErrConflict = xerrors.New(CodeConflict, "payment conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
)

// Record 描述一笔定时支付。金额与地址在创建后不可变,
// NextExecution 与 Active 只由 Dispatcher 或显式取消操作写入。
type Record struct {
	ID               string              `json:"id"`
	Owner            identity.UserID     `json:"owner"`
	SenderAddress    string              `json:"sender_address"`
	RecipientAddress string              `json:"recipient_address"`
	RecipientDisplay string              `json:"recipient_display"`
	AmountETH        string              `json:"amount_eth"`
	AmountWei        *big.Int            `json:"amount_wei"`
	Schedule         schedule.Descriptor `json:"schedule"`
	NextExecution    time.Time           `json:"next_execution"`
	Active           bool                `json:"active"`
	CreatedAt        time.Time           `json:"created_at"`
	// ProvisionedKey 仅在收款方钱包由系统代建时存在，
	// 用于之后通过交互层交还给所有者，绝不上链传输。
	ProvisionedKey string `json:"provisioned_key,omitempty"`
}

// Due 判断记录在 now 时刻是否到期。
func (r *Record) Due(now time.Time) bool {
	return r.Active && !r.NextExecution.After(now)
}

// Clone 返回记录的深拷贝，供内存存储在读写边界使用。
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.AmountWei != nil {
		out.AmountWei = new(big.Int).Set(r.AmountWei)
	}
	return &out
}
