package payment

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/chain"
	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/notify"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/observability/metrics"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/oracle"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/payment/events"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/wallet"
	"github.com/Greeshmanth19/payment-bot-crypto/pkg/logger"
)

// Target 描述一次转账的收款方与金额，由 ResolveTarget 构造。
type Target struct {
	Display   string
	Address   common.Address
	AmountETH string
	AmountWei *big.Int
	// Recipient 是收款方的规范身份；纯地址收款没有身份，为零值。
	Recipient identity.UserID
	// Provisioned 在收款钱包由本次解析代建时非空。
	Provisioned *wallet.Record
}

// Outcome 记录单个收款方的派发结果。TxHash 与 Err 二选一。
type Outcome struct {
	Display   string `json:"display"`
	Address   string `json:"address"`
	AmountETH string `json:"amount_eth"`
	TxHash    string `json:"tx_hash,omitempty"`
	Err       error  `json:"-"`
}

// OK 判断该收款方是否成功。
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Dispatcher 构建、签名并提交转账交易。同一付款人的所有签发动作
// 通过按付款地址加锁串行化，保证批内 nonce 预分配与并发即时转账
// 互不交错。
type Dispatcher struct {
	client chain.Client
	fees   *chain.Estimator
	guard  *Guard
	keys   wallet.Keystore
	dir    identity.Directory
	outbox notify.Outbox
	pub    events.Publisher
	prices oracle.PriceSource
	log    *slog.Logger

	locksMu sync.Mutex
	locks   map[common.Address]*sync.Mutex
}

// DispatcherOption 配置派发器的可选依赖。
type DispatcherOption func(*Dispatcher)

// WithPriceSource 注入法币报价来源，执行事件会附带美元估值。
func WithPriceSource(src oracle.PriceSource) DispatcherOption {
	return func(d *Dispatcher) {
		d.prices = src
	}
}

// NewDispatcher 构造派发器。
func NewDispatcher(client chain.Client, keys wallet.Keystore, dir identity.Directory, outbox notify.Outbox, pub events.Publisher, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client: client,
		fees:   chain.NewEstimator(client),
		guard:  NewGuard(client),
		keys:   keys,
		dir:    dir,
		outbox: outbox,
		pub:    pub,
		log:    logger.Named("payment.dispatcher"),
		locks:  make(map[common.Address]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// lockSender 返回付款地址对应互斥锁的解锁函数。
func (d *Dispatcher) lockSender(addr common.Address) func() {
	d.locksMu.Lock()
	mu, ok := d.locks[addr]
	if !ok {
		mu = &sync.Mutex{}
		d.locks[addr] = mu
	}
	d.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// ResolveTarget 将用户输入的收款方（地址或用户名）与金额文本解析为
// 转账目标。未知用户名会即时代建钱包，并把身份登记在临时命名空间下,
// 待其本人首次联系时领取。
func (d *Dispatcher) ResolveTarget(ctx context.Context, recipient, amountText string) (Target, error) {
	amountETH, amountWei, err := ParseAmount(amountText)
	if err != nil {
		return Target{}, err
	}

	raw := strings.TrimSpace(recipient)
	if raw == "" {
		return Target{}, xerrors.New(CodeValidation, "收款方不能为空")
	}

	if wallet.IsAddress(raw) {
		return Target{
			Display:   raw,
			Address:   common.HexToAddress(raw),
			AmountETH: amountETH,
			AmountWei: amountWei,
		}, nil
	}

	handle := identity.NormalizeHandle(raw)
	if handle == "" {
		return Target{}, xerrors.New(CodeValidation, "收款地址格式非法")
	}

	owner, err := d.dir.Resolve(ctx, handle)
	if err != nil {
		if !stdErrors.Is(err, identity.ErrHandleNotFound) {
			return Target{}, err
		}
		owner = identity.FromHandle(handle)
	}

	target := Target{
		Display:   handle.Display(),
		AmountETH: amountETH,
		AmountWei: amountWei,
		Recipient: owner,
	}

	record, err := d.keys.Get(ctx, owner)
	if err != nil {
		if !stdErrors.Is(err, wallet.ErrNotFound) {
			return Target{}, err
		}
		record, err = wallet.Provision()
		if err != nil {
			return Target{}, err
		}
		record.Handle = handle.String()
		if err := d.keys.Put(ctx, owner, record); err != nil {
			return Target{}, err
		}
		target.Provisioned = &record
		d.log.Info("为收款方代建钱包",
			slog.String("handle", handle.String()),
			slog.String("address", record.Address),
		)
	}
	target.Address = common.HexToAddress(record.Address)
	return target, nil
}

// Send 为一个收款方构建并提交单笔转账，返回规范化交易哈希。
func (d *Dispatcher) Send(ctx context.Context, sender identity.UserID, target Target) (Outcome, error) {
	senderWallet, err := d.keys.Get(ctx, sender)
	if err != nil {
		if stdErrors.Is(err, wallet.ErrNotFound) {
			return Outcome{}, xerrors.New(CodeValidation, "付款方尚未创建钱包")
		}
		return Outcome{}, err
	}
	outcomes, err := d.dispatch(ctx, sender, senderWallet, []Target{target}, "")
	if err != nil {
		return Outcome{}, err
	}
	outcome := outcomes[0]
	if outcome.Err != nil {
		return outcome, outcome.Err
	}
	return outcome, nil
}

// SendBatch 为一组收款方逐一构建并提交转账。nonce 以基准值顺序
// 预分配，单个收款方失败不会中止其余项，结果按收款方汇总。
func (d *Dispatcher) SendBatch(ctx context.Context, sender identity.UserID, targets []Target) ([]Outcome, error) {
	if len(targets) == 0 {
		return nil, xerrors.New(CodeValidation, "批量转账收款方不能为空")
	}
	senderWallet, err := d.keys.Get(ctx, sender)
	if err != nil {
		if stdErrors.Is(err, wallet.ErrNotFound) {
			return nil, xerrors.New(CodeValidation, "付款方尚未创建钱包")
		}
		return nil, err
	}
	return d.dispatch(ctx, sender, senderWallet, targets, "")
}

// ExecuteRecord 执行一条到期的定时支付记录，由 Scanner 调用。
func (d *Dispatcher) ExecuteRecord(ctx context.Context, record *Record) (Outcome, error) {
	senderWallet, err := d.keys.Get(ctx, record.Owner)
	if err != nil {
		return Outcome{}, err
	}
	target := Target{
		Display:   record.RecipientDisplay,
		Address:   common.HexToAddress(record.RecipientAddress),
		AmountETH: record.AmountETH,
		AmountWei: record.AmountWei,
		Recipient: d.recipientIdentity(ctx, record.RecipientDisplay),
	}
	if record.ProvisionedKey != "" {
		if provisioned, keyErr := wallet.ParsePrivateKey(record.ProvisionedKey); keyErr == nil {
			provisioned.Imported = false
			target.Provisioned = &provisioned
		}
	}

	outcomes, err := d.dispatch(ctx, record.Owner, senderWallet, []Target{target}, record.ID)
	if err != nil {
		return Outcome{}, err
	}
	outcome := outcomes[0]
	if outcome.Err != nil {
		return outcome, outcome.Err
	}
	return outcome, nil
}

// dispatch 是单笔与批量共用的签发路径：估费、聚合预检、基准 nonce
// 加偏移构建交易、签名、提交、通知与事件发布。
func (d *Dispatcher) dispatch(ctx context.Context, sender identity.UserID, senderWallet wallet.Record, targets []Target, paymentID string) ([]Outcome, error) {
	start := time.Now()
	mode := metrics.ModeImmediate
	if paymentID != "" {
		mode = metrics.ModeScheduled
	}

	senderAddr := common.HexToAddress(senderWallet.Address)
	unlock := d.lockSender(senderAddr)
	defer unlock()

	key, err := senderWallet.Key()
	if err != nil {
		return nil, err
	}
	chainID, err := d.client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	quote, err := d.fees.Quote(ctx)
	if err != nil {
		return nil, err
	}

	amounts := make([]*big.Int, len(targets))
	for i, target := range targets {
		amounts[i] = target.AmountWei
	}
	if err := d.guard.Ensure(ctx, senderAddr, amounts, quote); err != nil {
		return nil, err
	}

	baseNonce, err := d.client.PendingNonceAt(ctx, senderAddr)
	if err != nil {
		return nil, err
	}

	signer := coretypes.LatestSignerForChainID(chainID)
	signed := make([]*coretypes.Transaction, len(targets))
	for i, target := range targets {
		tx := buildTransfer(chainID, baseNonce+uint64(i), target.Address, target.AmountWei, quote)
		signedTx, signErr := coretypes.SignTx(tx, signer, key)
		if signErr != nil {
			return nil, xerrors.Wrap(chain.CodeTxSubmit, signErr, "交易签名失败")
		}
		signed[i] = signedTx
	}

	outcomes := make([]Outcome, len(targets))
	for i, target := range targets {
		outcomes[i] = Outcome{
			Display:   target.Display,
			Address:   target.Address.Hex(),
			AmountETH: target.AmountETH,
		}
	}

	if len(signed) == 1 {
		if err := d.client.SendTransaction(ctx, signed[0]); err != nil {
			outcomes[0].Err = err
		} else {
			outcomes[0].TxHash = normalizeHash(signed[0].Hash().Hex())
		}
	} else {
		results, err := d.client.SendBatchTransactions(ctx, signed)
		if err != nil {
			return nil, err
		}
		for i, result := range results {
			if result.Err != nil {
				outcomes[i].Err = result.Err
				continue
			}
			outcomes[i].TxHash = normalizeHash(result.Hash.Hex())
		}
	}

	elapsed := time.Since(start)
	for i, outcome := range outcomes {
		metrics.ObservePaymentExecution(mode, outcome.OK(), elapsed)
		d.report(ctx, sender, senderWallet, targets[i], outcome, paymentID)
	}
	return outcomes, nil
}

// report 发布执行事件，并为有身份的收款方投递离线通知。
func (d *Dispatcher) report(ctx context.Context, sender identity.UserID, senderWallet wallet.Record, target Target, outcome Outcome, paymentID string) {
	event := events.NewEvent(events.KindExecuted)
	event.PaymentID = paymentID
	event.Owner = sender.String()
	event.Recipient = outcome.Display
	event.AmountETH = outcome.AmountETH
	var amountUSD string
	if outcome.Err != nil {
		event.Kind = events.KindFailed
		event.Error = outcome.Err.Error()
	} else {
		event.TxHash = outcome.TxHash
		amountUSD = d.quoteUSD(ctx, outcome.AmountETH)
		event.AmountUSD = amountUSD
	}
	if err := d.pub.Publish(ctx, event); err != nil {
		d.log.Warn("执行事件发布失败", slog.Any("error", err), slog.String("recipient", outcome.Display))
	}

	if outcome.Err != nil || target.Recipient.IsZero() {
		return
	}

	senderDisplay := identity.Handle(senderWallet.Handle).Display()
	if senderDisplay == "" {
		senderDisplay = sender.String()
	}

	var notification notify.Notification
	if target.Provisioned != nil {
		notification = notify.New(target.Recipient, notify.KindWalletProvisioned,
			fmt.Sprintf("%s 向你转账 %s ETH，系统已为你代建钱包", senderDisplay, outcome.AmountETH)).
			WithMetadata("wallet_address", target.Provisioned.Address).
			WithMetadata("private_key", target.Provisioned.PrivateKeyHex)
	} else {
		notification = notify.New(target.Recipient, notify.KindPaymentReceived,
			fmt.Sprintf("%s 向你转账 %s ETH", senderDisplay, outcome.AmountETH))
	}
	notification = notification.
		WithMetadata("tx_hash", outcome.TxHash).
		WithMetadata("amount_eth", outcome.AmountETH).
		WithMetadata("sender", senderDisplay)
	if amountUSD != "" {
		notification = notification.WithMetadata("amount_usd", amountUSD)
	}

	if err := d.outbox.Append(ctx, notification); err != nil {
		d.log.Warn("通知入箱失败",
			slog.Any("error", err),
			slog.String("recipient", target.Recipient.String()),
		)
	}
}

// quoteUSD 估算金额的美元价值；报价来源缺失或不可用时返回空串。
func (d *Dispatcher) quoteUSD(ctx context.Context, amountETH string) string {
	if d.prices == nil {
		return ""
	}
	eth, err := strconv.ParseFloat(amountETH, 64)
	if err != nil {
		return ""
	}
	spot, err := d.prices.SpotPrice(ctx)
	if err != nil {
		d.log.Debug("法币报价不可用", slog.Any("error", err))
		return ""
	}
	return strconv.FormatFloat(eth*spot, 'f', 2, 64)
}

// recipientIdentity 从展示名推导收款身份；纯地址没有身份。
func (d *Dispatcher) recipientIdentity(ctx context.Context, display string) identity.UserID {
	if !strings.HasPrefix(display, "@") {
		return identity.Zero
	}
	handle := identity.NormalizeHandle(display)
	owner, err := d.dir.Resolve(ctx, handle)
	if err != nil {
		return identity.FromHandle(handle)
	}
	return owner
}

// buildTransfer 按费用报价的形态构建 EIP-1559 或 legacy 转账。
func buildTransfer(chainID *big.Int, nonce uint64, to common.Address, amount *big.Int, quote chain.FeeQuote) *coretypes.Transaction {
	if quote.Dynamic() {
		return coretypes.NewTx(&coretypes.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: quote.GasTipCap,
			GasFeeCap: quote.GasFeeCap,
			Gas:       quote.GasLimit,
			To:        &to,
			Value:     amount,
		})
	}
	return coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: quote.GasPrice,
		Gas:      quote.GasLimit,
		To:       &to,
		Value:    amount,
	})
}

// normalizeHash 保证对外暴露的交易哈希带统一的 0x 前缀。
func normalizeHash(hash string) string {
	if hash == "" {
		return hash
	}
	if !strings.HasPrefix(hash, "0x") {
		return "0x" + hash
	}
	return hash
}
