package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/notify"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/observability/alerting"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/observability/metrics"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/schedule"
	"github.com/Greeshmanth19/payment-bot-crypto/pkg/logger"
)

// Clock 抽象当前时间来源，便于在测试中注入确定性时钟。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock 返回真实时钟。
func SystemClock() Clock { return systemClock{} }

// ScannerOption 配置 Scanner 的可选参数。
type ScannerOption func(*Scanner)

// WithClock 注入时间来源。
func WithClock(clock Clock) ScannerOption {
	return func(s *Scanner) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithInterval 设置两次扫描之间的间隔。
func WithInterval(interval time.Duration) ScannerOption {
	return func(s *Scanner) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithInitialDelay 设置启动到第一次扫描的延迟。
func WithInitialDelay(delay time.Duration) ScannerOption {
	return func(s *Scanner) {
		if delay >= 0 {
			s.initialDelay = delay
		}
	}
}

// WithAlerts 注入告警分发器，执行失败时广播告警事件。
func WithAlerts(alerts alerting.Dispatcher) ScannerOption {
	return func(s *Scanner) {
		s.alerts = alerts
	}
}

// Scanner 以固定间隔扫描到期的支付记录并驱动 Dispatcher。同一个
// tick 内到期记录严格顺序处理；派发失败的记录保持到期状态,
// 由下一个 tick 重试，tick 间隔即唯一的退避。
type Scanner struct {
	store      Store
	dispatcher *Dispatcher
	outbox     notify.Outbox
	alerts     alerting.Dispatcher
	clock      Clock
	log        *slog.Logger

	interval     time.Duration
	initialDelay time.Duration

	tickMu sync.Mutex
}

// NewScanner 构造扫描器，默认 60 秒间隔、10 秒初始延迟。
func NewScanner(store Store, dispatcher *Dispatcher, outbox notify.Outbox, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		store:        store,
		dispatcher:   dispatcher,
		outbox:       outbox,
		clock:        systemClock{},
		log:          logger.Named("payment.scanner"),
		interval:     time.Minute,
		initialDelay: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 运行扫描循环直到上下文取消。
func (s *Scanner) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.initialDelay):
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			s.log.Error("扫描执行失败", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick 执行一轮到期扫描，返回成功派发的记录数。入口可重入:
// 并发调用会依次排队执行，不会交错处理同一批记录。
func (s *Scanner) Tick(ctx context.Context) (int, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.clock.Now()
	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, record := range due {
		if err := ctx.Err(); err != nil {
			return dispatched, err
		}
		if s.process(ctx, record, now) {
			dispatched++
		}
	}
	metrics.ObserveScan(dispatched)
	return dispatched, nil
}

// process 派发一条到期记录并推进其状态机。
func (s *Scanner) process(ctx context.Context, record *Record, now time.Time) bool {
	outcome, err := s.dispatcher.ExecuteRecord(ctx, record)
	if err != nil {
		// 记录保持到期，下一个 tick 重试。
		s.log.Warn("定时支付执行失败",
			slog.String("payment_id", record.ID),
			slog.String("recipient", record.RecipientDisplay),
			slog.Any("error", err),
		)
		s.notifyOwner(ctx, record, notify.KindPaymentFailed,
			fmt.Sprintf("定时支付执行失败：%s ETH -> %s", record.AmountETH, record.RecipientDisplay))
		if s.alerts != nil {
			if alertErr := s.alerts.Notify(ctx, alerting.FromError(err, record.ID, record.Owner)); alertErr != nil {
				s.log.Warn("告警发送失败", slog.String("payment_id", record.ID), slog.Any("error", alertErr))
			}
		}
		return false
	}

	logger.Audit().Info("定时支付已上链",
		slog.String("payment_id", record.ID),
		slog.String("owner", record.Owner.String()),
		slog.String("recipient", record.RecipientDisplay),
		slog.String("amount_eth", record.AmountETH),
		slog.String("tx_hash", outcome.TxHash),
	)

	if record.Schedule.Kind == schedule.KindOneTime {
		if err := s.store.Deactivate(ctx, record.ID); err != nil {
			s.log.Error("停用一次性支付失败", slog.String("payment_id", record.ID), slog.Any("error", err))
		}
	} else {
		next, nextErr := schedule.Next(record.Schedule, now)
		if nextErr != nil {
			s.log.Error("计算下次执行时间失败", slog.String("payment_id", record.ID), slog.Any("error", nextErr))
		} else if err := s.store.Reschedule(ctx, record.ID, next); err != nil {
			s.log.Error("推进下次执行时间失败", slog.String("payment_id", record.ID), slog.Any("error", err))
		}
	}

	s.notifyOwner(ctx, record, notify.KindPaymentSent,
		fmt.Sprintf("定时支付已发送：%s ETH -> %s", record.AmountETH, record.RecipientDisplay))
	return true
}

func (s *Scanner) notifyOwner(ctx context.Context, record *Record, kind notify.Kind, message string) {
	if s.outbox == nil {
		return
	}
	notification := notify.New(record.Owner, kind, message).
		WithMetadata("payment_id", record.ID).
		WithMetadata("amount_eth", record.AmountETH)
	if err := s.outbox.Append(ctx, notification); err != nil {
		s.log.Warn("通知入箱失败", slog.String("payment_id", record.ID), slog.Any("error", err))
	}
}
