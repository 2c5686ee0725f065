package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

// TransferGasLimit is the fixed gas limit of a plain value transfer.
const TransferGasLimit = params.TxGas

var (
	// tipBuffer is added on top of the node's suggested priority fee so
	// transfers land even when the suggestion lags the mempool.
	tipBuffer = big.NewInt(params.GWei)
	// maxFeeCeiling caps the dynamic fee cap at 100 gwei per gas.
	maxFeeCeiling = new(big.Int).Mul(big.NewInt(100), big.NewInt(params.GWei))
)

// FeeQuote carries the gas parameters for a single value transfer. Dynamic
// quotes populate GasFeeCap and GasTipCap; legacy quotes populate GasPrice.
type FeeQuote struct {
	GasLimit  uint64
	GasPrice  *big.Int
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

// Dynamic reports whether the quote targets an EIP-1559 transaction.
func (q FeeQuote) Dynamic() bool {
	return q.GasFeeCap != nil
}

// Cost returns the worst-case wei spent on gas for one transfer.
func (q FeeQuote) Cost() *big.Int {
	price := q.GasPrice
	if q.Dynamic() {
		price = q.GasFeeCap
	}
	if price == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(q.GasLimit))
}

// FeeReader is the subset of Client the estimator depends on.
type FeeReader interface {
	LatestHeader(ctx context.Context) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Estimator produces fee quotes from live chain data. It prefers EIP-1559
// pricing and falls back to legacy gas pricing when the chain predates the
// fee market or the node refuses the newer queries.
type Estimator struct {
	reader FeeReader
}

// NewEstimator constructs an estimator backed by the given reader.
func NewEstimator(reader FeeReader) *Estimator {
	return &Estimator{reader: reader}
}

// Quote computes the gas parameters for a plain transfer. The fee cap is
// 1.5x the current base fee plus the buffered tip, bounded by the 100 gwei
// ceiling. Legacy quotes carry a 20% premium over the suggested gas price.
func (e *Estimator) Quote(ctx context.Context) (FeeQuote, error) {
	header, err := e.reader.LatestHeader(ctx)
	if err == nil && header != nil && header.BaseFee != nil {
		tip, tipErr := e.reader.SuggestGasTipCap(ctx)
		if tipErr == nil && tip != nil {
			tip = new(big.Int).Add(tip, tipBuffer)

			feeCap := new(big.Int).Mul(header.BaseFee, big.NewInt(3))
			feeCap.Div(feeCap, big.NewInt(2))
			feeCap.Add(feeCap, tip)
			if feeCap.Cmp(maxFeeCeiling) > 0 {
				feeCap = new(big.Int).Set(maxFeeCeiling)
			}
			if tip.Cmp(feeCap) > 0 {
				tip = new(big.Int).Set(feeCap)
			}
			return FeeQuote{
				GasLimit:  TransferGasLimit,
				GasFeeCap: feeCap,
				GasTipCap: tip,
			}, nil
		}
	}

	price, priceErr := e.reader.SuggestGasPrice(ctx)
	if priceErr != nil {
		return FeeQuote{}, xerrors.Wrap(CodeChainRPC, priceErr, "查询 gas 价格失败")
	}
	price = new(big.Int).Mul(price, big.NewInt(6))
	price.Div(price, big.NewInt(5))
	return FeeQuote{
		GasLimit: TransferGasLimit,
		GasPrice: price,
	}, nil
}
