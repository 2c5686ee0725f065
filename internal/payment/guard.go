package payment

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/chain"
	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

// BalanceReader 是 Guard 依赖的链上余额查询子集。
type BalanceReader interface {
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
}

// Guard 在签发任何交易前做一次聚合资金预检。整批只检查一次,
// 批内单笔发送之间不再复验。
type Guard struct {
	reader BalanceReader
}

// NewGuard 创建余额预检器。
func NewGuard(reader BalanceReader) *Guard {
	return &Guard{reader: reader}
}

// Ensure 校验 sender 的余额足以覆盖全部转账金额加上每笔交易的
// 费用预估。余额等于所需总额时放行；不足时返回带缺口信息的错误,
// 此时一笔交易都不会签发。
func (g *Guard) Ensure(ctx context.Context, sender common.Address, amounts []*big.Int, quote chain.FeeQuote) error {
	if len(amounts) == 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "没有需要预检的转账")
	}

	required := new(big.Int)
	for _, amount := range amounts {
		if amount == nil || amount.Sign() <= 0 {
			return xerrors.New(CodeValidation, "转账金额必须大于零")
		}
		required.Add(required, amount)
	}
	gasTotal := new(big.Int).Mul(quote.Cost(), big.NewInt(int64(len(amounts))))
	required.Add(required, gasTotal)

	balance, err := g.reader.BalanceAt(ctx, sender)
	if err != nil {
		return err
	}
	if balance.Cmp(required) < 0 {
		return xerrors.New(CodeInsufficientFunds,
			fmt.Sprintf("余额不足：需要 %s ETH，可用 %s ETH", FormatWei(required), FormatWei(balance)),
			xerrors.WithMetadata("required_wei", required.String()),
			xerrors.WithMetadata("available_wei", balance.String()),
		)
	}
	return nil
}
