// Package events publishes payment execution outcomes to the interface
// layer. Production deployments feed a RabbitMQ queue consumed by the
// conversational surface; tests and single-binary setups use the in-memory
// publisher.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind 区分执行事件的类型。
type Kind string

const (
	// KindExecuted 表示一笔支付成功上链。
	KindExecuted Kind = "payment_executed"
	// KindFailed 表示一次派发尝试失败。
	KindFailed Kind = "payment_failed"
)

// Event 描述一次派发的结果。PaymentID 在即时转账时为空。
type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	PaymentID  string    `json:"payment_id,omitempty"`
	Owner      string    `json:"owner"`
	Recipient  string    `json:"recipient"`
	AmountETH  string    `json:"amount_eth"`
	AmountUSD  string    `json:"amount_usd,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent 构造一个带唯一 ID 与时间戳的事件。
func NewEvent(kind Kind) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher 抽象事件的发布通道。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// MemoryPublisher 在进程内累积事件，供测试断言。
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

var _ Publisher = (*MemoryPublisher)(nil)

// NewMemoryPublisher 创建内存发布器。
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish 实现 Publisher 接口。
func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events 返回已发布事件的副本。
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Close 实现 Publisher 接口。
func (p *MemoryPublisher) Close() error {
	return nil
}
