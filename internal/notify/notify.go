package notify

import (
	"time"

	"github.com/google/uuid"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
)

const (
	// CodeOutbox 表示通知暂存或投递失败，多为后端 IO 问题，可重试。
	CodeOutbox xerrors.Code = "OUTBOX_FAILURE"
)

func init() {
	xerrors.Register(CodeOutbox, xerrors.Attributes{
		Message:   "notification outbox failure",
		Severity:  xerrors.SeverityError,
		Retryable: true,
		Alert:     false,
	})
}

// Kind 区分通知的业务类型。
type Kind string

const (
	// KindPaymentReceived 通知收款方有一笔入账。
	KindPaymentReceived Kind = "payment_received"
	// KindWalletProvisioned 通知收款方系统已为其代管新钱包，附带私钥。
	KindWalletProvisioned Kind = "wallet_provisioned"
	// KindPaymentSent 通知付款方定时支付已经上链。
	KindPaymentSent Kind = "payment_sent"
	// KindPaymentFailed 通知付款方定时支付执行失败。
	KindPaymentFailed Kind = "payment_failed"
)

// Notification 是一条待投递的用户通知。Metadata 携带结构化上下文,
// 例如交易哈希或托管私钥。
type Notification struct {
	ID        string            `json:"id"`
	Recipient identity.UserID   `json:"recipient"`
	Kind      Kind              `json:"kind"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// New 构造一条带唯一 ID 的通知。
func New(recipient identity.UserID, kind Kind, message string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// WithMetadata 返回附加了一个元数据键值的通知副本。
func (n Notification) WithMetadata(key, value string) Notification {
	meta := make(map[string]string, len(n.Metadata)+1)
	for k, v := range n.Metadata {
		meta[k] = v
	}
	meta[key] = value
	n.Metadata = meta
	return n
}
