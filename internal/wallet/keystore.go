package wallet

import (
	"context"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
)

// Keystore 抽象了钱包记录的托管存储。
type Keystore interface {
	// Get 按身份取出钱包，未绑定时返回 ErrNotFound。
	Get(ctx context.Context, owner identity.UserID) (Record, error)
	// Put 保存或覆盖身份对应的钱包。
	Put(ctx context.Context, owner identity.UserID, record Record) error
	Close() error
}
