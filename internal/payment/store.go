package payment

import (
	"context"
	"time"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
)

// Stats 汇总存储中的记录规模，供运维接口查询。
type Stats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Due    int `json:"due"`
}

// Store 抽象了支付记录的持久化接口。取消是软删除,
// Scanner 永不物理删除记录。
type Store interface {
	Create(ctx context.Context, record *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	ListByOwner(ctx context.Context, owner identity.UserID) ([]*Record, error)
	// ListDue 返回 active 且 next_execution <= now 的记录，按到期时间排序。
	ListDue(ctx context.Context, now time.Time) ([]*Record, error)
	// Reschedule 推进记录的下次执行时间。
	Reschedule(ctx context.Context, id string, next time.Time) error
	// Deactivate 将记录软停用，保留历史。
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, now time.Time) (Stats, error)
	Close() error
}
