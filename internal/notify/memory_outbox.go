package notify

import (
	"context"
	"sync"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
)

// MemoryOutbox 是进程内的 Outbox 实现，用于测试与单机部署。
type MemoryOutbox struct {
	mu      sync.RWMutex
	pending map[identity.UserID][]Notification
}

var _ Outbox = (*MemoryOutbox)(nil)

// NewMemoryOutbox 创建空的内存 Outbox。
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{pending: make(map[identity.UserID][]Notification)}
}

// Append 实现 Outbox 接口。
func (o *MemoryOutbox) Append(_ context.Context, n Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, existing := range o.pending[n.Recipient] {
		if existing.ID == n.ID {
			return nil
		}
	}
	o.pending[n.Recipient] = append(o.pending[n.Recipient], n)
	return nil
}

// Pending 实现 Outbox 接口。
func (o *MemoryOutbox) Pending(_ context.Context, recipient identity.UserID) ([]Notification, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	items := o.pending[recipient]
	out := make([]Notification, len(items))
	copy(out, items)
	return out, nil
}

// Remove 实现 Outbox 接口。
func (o *MemoryOutbox) Remove(_ context.Context, recipient identity.UserID, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	items := o.pending[recipient]
	kept := items[:0]
	for _, n := range items {
		if _, ok := drop[n.ID]; !ok {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		delete(o.pending, recipient)
		return nil
	}
	o.pending[recipient] = kept
	return nil
}

// Close 实现 Outbox 接口。
func (o *MemoryOutbox) Close() error {
	return nil
}
