package wallet

import (
	"context"
	"sync"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
)

// MemoryKeystore 以内存方式托管钱包，主要用于测试。
type MemoryKeystore struct {
	mu      sync.RWMutex
	records map[identity.UserID]Record
}

// NewMemoryKeystore 创建 MemoryKeystore。
func NewMemoryKeystore() *MemoryKeystore {
	return &MemoryKeystore{records: make(map[identity.UserID]Record)}
}

// Get 实现 Keystore 接口。
func (m *MemoryKeystore) Get(_ context.Context, owner identity.UserID) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[owner]
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

// Put 实现 Keystore 接口。
func (m *MemoryKeystore) Put(_ context.Context, owner identity.UserID, record Record) error {
	if owner.IsZero() {
		return xerrors.New(xerrors.CodeInvalidArgument, "钱包归属身份不能为空")
	}
	m.mu.Lock()
	m.records[owner] = record
	m.mu.Unlock()
	return nil
}

// Close 对内存存储无需操作。
func (m *MemoryKeystore) Close() error { return nil }

var _ Keystore = (*MemoryKeystore)(nil)
