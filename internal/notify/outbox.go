package notify

import (
	"context"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
)

// Outbox 按收件人暂存通知。Append 与 Remove 必须幂等,
// 同一条通知被重复追加或移除不造成错误。
type Outbox interface {
	// Append 将通知追加到收件人的待投递列表尾部。
	Append(ctx context.Context, n Notification) error
	// Pending 返回收件人全部待投递通知，按追加顺序排列。
	Pending(ctx context.Context, recipient identity.UserID) ([]Notification, error)
	// Remove 将指定 ID 的通知从收件人列表中移除。
	Remove(ctx context.Context, recipient identity.UserID, ids ...string) error
	// Close 释放后端连接。
	Close() error
}
