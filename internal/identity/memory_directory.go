package identity

import (
	"context"
	"sync"
)

// MemoryDirectory 以内存方式保存用户名映射，主要用于测试。
type MemoryDirectory struct {
	mu      sync.RWMutex
	entries map[Handle]UserID
}

// NewMemoryDirectory 创建 MemoryDirectory。
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{entries: make(map[Handle]UserID)}
}

// Resolve 实现 Directory 接口。
func (d *MemoryDirectory) Resolve(_ context.Context, handle Handle) (UserID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	owner, ok := d.entries[NormalizeHandle(handle.String())]
	if !ok {
		return Zero, ErrHandleNotFound
	}
	return owner, nil
}

// Record 实现 Directory 接口。
func (d *MemoryDirectory) Record(_ context.Context, handle Handle, owner UserID) error {
	normalized := NormalizeHandle(handle.String())
	if normalized == "" || owner.IsZero() {
		return nil
	}
	d.mu.Lock()
	d.entries[normalized] = owner
	d.mu.Unlock()
	return nil
}

var _ Directory = (*MemoryDirectory)(nil)
