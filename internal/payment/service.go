package payment

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/schedule"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/wallet"
	"github.com/Greeshmanth19/payment-bot-crypto/pkg/logger"
)

// ScheduleRequest 描述一次定时支付的创建请求。
type ScheduleRequest struct {
	Owner        identity.UserID
	Recipient    string
	AmountText   string
	ScheduleText string
}

// BatchItem 是批量转账里的一个收款方。
type BatchItem struct {
	Recipient  string
	AmountText string
}

// Service 负责定时支付的创建、查询与取消，以及即时转账入口。
type Service struct {
	store      Store
	dispatcher *Dispatcher
	keys       wallet.Keystore
	clock      Clock
	log        *slog.Logger
}

// NewService 构造支付服务。
func NewService(store Store, dispatcher *Dispatcher, keys wallet.Keystore, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		keys:       keys,
		clock:      clock,
		log:        logger.Named("payment.service"),
	}
}

// Schedule 解析计划文本与金额，创建一条激活的支付记录。
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (*Record, error) {
	if req.Owner.IsZero() {
		return nil, xerrors.New(CodeValidation, "付款方身份不能为空")
	}
	senderWallet, err := s.keys.Get(ctx, req.Owner)
	if err != nil {
		if stdErrors.Is(err, wallet.ErrNotFound) {
			return nil, xerrors.New(CodeValidation, "付款方尚未创建钱包")
		}
		return nil, err
	}

	now := s.clock.Now()
	desc, err := schedule.Parse(req.ScheduleText, now)
	if err != nil {
		return nil, err
	}

	target, err := s.dispatcher.ResolveTarget(ctx, req.Recipient, req.AmountText)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(target.Address.Hex(), senderWallet.Address) {
		return nil, xerrors.New(CodeValidation, "不能向自己定时转账")
	}

	next, err := schedule.Next(desc, now)
	if err != nil {
		return nil, err
	}
	if desc.Kind == schedule.KindOneTime && !next.After(now) {
		return nil, xerrors.New(CodeValidation, "一次性支付的执行时间必须晚于当前时间")
	}

	record := &Record{
		ID:               uuid.NewString(),
		Owner:            req.Owner,
		SenderAddress:    senderWallet.Address,
		RecipientAddress: target.Address.Hex(),
		RecipientDisplay: target.Display,
		AmountETH:        target.AmountETH,
		AmountWei:        target.AmountWei,
		Schedule:         desc,
		NextExecution:    next,
		Active:           true,
		CreatedAt:        now,
	}
	if target.Provisioned != nil {
		record.ProvisionedKey = target.Provisioned.PrivateKeyHex
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}

	logger.Audit().Info("创建定时支付",
		slog.String("payment_id", record.ID),
		slog.String("owner", record.Owner.String()),
		slog.String("recipient", record.RecipientDisplay),
		slog.String("amount_eth", record.AmountETH),
		slog.String("schedule", desc.Describe()),
	)
	return record.Clone(), nil
}

// List 返回归属某付款方的全部支付记录。
func (s *Service) List(ctx context.Context, owner identity.UserID) ([]*Record, error) {
	if owner.IsZero() {
		return nil, xerrors.New(CodeValidation, "付款方身份不能为空")
	}
	return s.store.ListByOwner(ctx, owner)
}

// Cancel 软停用一条支付记录，记录本身保留。
func (s *Service) Cancel(ctx context.Context, owner identity.UserID, id string) error {
	if _, err := s.owned(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.Deactivate(ctx, id); err != nil {
		return err
	}
	logger.Audit().Info("取消定时支付",
		slog.String("payment_id", id),
		slog.String("owner", owner.String()),
	)
	return nil
}

// Delete 物理删除一条支付记录，仅响应付款方的显式请求。
func (s *Service) Delete(ctx context.Context, owner identity.UserID, id string) error {
	if _, err := s.owned(ctx, owner, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// SendNow 即时发送一笔转账。
func (s *Service) SendNow(ctx context.Context, owner identity.UserID, recipient, amountText string) (Outcome, error) {
	target, err := s.dispatcher.ResolveTarget(ctx, recipient, amountText)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.rejectSelfPayment(ctx, owner, target); err != nil {
		return Outcome{}, err
	}
	return s.dispatcher.Send(ctx, owner, target)
}

// SendBatchNow 即时发送一批转账，金额可以各不相同。
func (s *Service) SendBatchNow(ctx context.Context, owner identity.UserID, items []BatchItem) ([]Outcome, error) {
	if len(items) == 0 {
		return nil, xerrors.New(CodeValidation, "批量转账收款方不能为空")
	}
	targets := make([]Target, 0, len(items))
	for _, item := range items {
		target, err := s.dispatcher.ResolveTarget(ctx, item.Recipient, item.AmountText)
		if err != nil {
			return nil, err
		}
		if err := s.rejectSelfPayment(ctx, owner, target); err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return s.dispatcher.SendBatch(ctx, owner, targets)
}

// Stats 返回存储的运行统计。
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx, s.clock.Now())
}

func (s *Service) owned(ctx context.Context, owner identity.UserID, id string) (*Record, error) {
	if owner.IsZero() || strings.TrimSpace(id) == "" {
		return nil, xerrors.New(CodeValidation, "请求参数不完整")
	}
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Owner != owner {
		// 不向非所有者泄露记录存在与否。
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *Service) rejectSelfPayment(ctx context.Context, owner identity.UserID, target Target) error {
	senderWallet, err := s.keys.Get(ctx, owner)
	if err != nil {
		if stdErrors.Is(err, wallet.ErrNotFound) {
			return xerrors.New(CodeValidation, "付款方尚未创建钱包")
		}
		return err
	}
	if strings.EqualFold(target.Address.Hex(), senderWallet.Address) {
		return xerrors.New(CodeValidation, "不能向自己转账")
	}
	return nil
}
