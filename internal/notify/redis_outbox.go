package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
)

// RedisOutboxConfig 描述 Redis Outbox 的连接参数。
type RedisOutboxConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisOutbox 使用每个收件人一个 Redis list 暂存通知。
type RedisOutbox struct {
	client *redis.Client
	prefix string
}

var _ Outbox = (*RedisOutbox)(nil)

// NewRedisOutbox 创建 Redis Outbox 实例。
func NewRedisOutbox(cfg RedisOutboxConfig) (*RedisOutbox, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "paybot:outbox"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisOutbox{client: client, prefix: prefix}, nil
}

func (o *RedisOutbox) key(recipient identity.UserID) string {
	return o.prefix + ":" + recipient.String()
}

// Append 实现 Outbox 接口。
func (o *RedisOutbox) Append(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return xerrors.Wrap(CodeOutbox, err, "序列化通知失败")
	}
	if err := o.client.RPush(ctx, o.key(n.Recipient), payload).Err(); err != nil {
		return xerrors.Wrap(CodeOutbox, err, "Redis 追加通知失败")
	}
	return nil
}

// Pending 实现 Outbox 接口。
func (o *RedisOutbox) Pending(ctx context.Context, recipient identity.UserID) ([]Notification, error) {
	raws, err := o.client.LRange(ctx, o.key(recipient), 0, -1).Result()
	if err != nil {
		return nil, xerrors.Wrap(CodeOutbox, err, "Redis 读取通知失败")
	}
	items := make([]Notification, 0, len(raws))
	for _, raw := range raws {
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			// 损坏的元素跳过，不阻塞其余通知。
			continue
		}
		items = append(items, n)
	}
	return items, nil
}

// Remove 实现 Outbox 接口。列表元素按原始 JSON 精确移除,
// 因此先读出再逐条匹配 ID。
func (o *RedisOutbox) Remove(ctx context.Context, recipient identity.UserID, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	key := o.key(recipient)
	raws, err := o.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return xerrors.Wrap(CodeOutbox, err, "Redis 读取通知失败")
	}
	for _, raw := range raws {
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			continue
		}
		if _, ok := drop[n.ID]; !ok {
			continue
		}
		if err := o.client.LRem(ctx, key, 1, raw).Err(); err != nil {
			return xerrors.Wrap(CodeOutbox, err, "Redis 移除通知失败")
		}
	}
	return nil
}

// Close 关闭 Redis 连接。
func (o *RedisOutbox) Close() error {
	if o == nil || o.client == nil {
		return nil
	}
	return o.client.Close()
}
