package notify

import (
	"context"
	"log/slog"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
	"github.com/Greeshmanth19/payment-bot-crypto/pkg/logger"
	"github.com/Greeshmanth19/payment-bot-crypto/pkg/retry"
)

// Transport 负责把一条通知真正送达用户，例如聊天消息或邮件。
type Transport interface {
	Deliver(ctx context.Context, n Notification) error
}

// TransportFunc 允许用函数直接充当 Transport。
type TransportFunc func(ctx context.Context, n Notification) error

// Deliver 实现 Transport 接口。
func (f TransportFunc) Deliver(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogTransport 把通知写入结构化日志，用于没有外部投递通道的部署。
func LogTransport() Transport {
	log := logger.Named("notify")
	return TransportFunc(func(_ context.Context, n Notification) error {
		log.Info("通知投递",
			slog.String("id", n.ID),
			slog.String("recipient", n.Recipient.String()),
			slog.String("kind", string(n.Kind)),
			slog.String("message", n.Message),
		)
		return nil
	})
}

// Drainer 在用户首次联系时清空其积压通知。投递成功才从 Outbox
// 移除，保证至少一次送达。
type Drainer struct {
	outbox    Outbox
	transport Transport
	policy    retry.Policy
	log       *slog.Logger
}

// NewDrainer 创建 Drainer。policy 为零值时默认三次尝试,
// 投递错误一律视为瞬时错误。
func NewDrainer(outbox Outbox, transport Transport, policy retry.Policy) *Drainer {
	if policy.Attempts <= 0 {
		policy = retry.Default()
		policy.Retryable = retry.Always
	}
	return &Drainer{
		outbox:    outbox,
		transport: transport,
		policy:    policy,
		log:       logger.Named("notify.drainer"),
	}
}

// Drain 投递收件人全部积压通知，返回成功送达的条数。
// 单条投递失败不阻塞后续通知，失败的条目留在 Outbox 等待下次。
func (d *Drainer) Drain(ctx context.Context, recipient identity.UserID) (int, error) {
	pending, err := d.outbox.Pending(ctx, recipient)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	delivered := make([]string, 0, len(pending))
	for _, n := range pending {
		n := n
		err := retry.Do(ctx, d.policy, func(ctx context.Context) error {
			return d.transport.Deliver(ctx, n)
		})
		if err != nil {
			d.log.Warn("通知投递失败",
				slog.String("id", n.ID),
				slog.String("recipient", recipient.String()),
				slog.Any("error", err),
			)
			continue
		}
		delivered = append(delivered, n.ID)
	}

	if len(delivered) > 0 {
		if err := d.outbox.Remove(ctx, recipient, delivered...); err != nil {
			return len(delivered), err
		}
	}
	return len(delivered), nil
}
