package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

const (
	// CodeChainRPC 表示 RPC 节点访问失败，属于可重试的网络错误。
	CodeChainRPC xerrors.Code = "CHAIN_RPC_FAILURE"
	// CodeTxSubmit 表示已签名交易被节点拒绝，默认不重试。
	CodeTxSubmit xerrors.Code = "TX_SUBMIT_FAILED"
)

func init() {
	xerrors.Register(CodeChainRPC, xerrors.Attributes{
		Message:   "chain rpc failure",
		Severity:  xerrors.SeverityError,
		Retryable: true,
		Alert:     false,
	})
	xerrors.Register(CodeTxSubmit, xerrors.Attributes{
		Message:   "transaction submission failed",
		Severity:  xerrors.SeverityError,
		Retryable: false,
		Alert:     true,
	})
}

// SendResult captures the per-transaction outcome of a batched submission.
// Exactly one of Hash and Err is meaningful.
type SendResult struct {
	Hash common.Hash
	Err  error
}

// OK reports whether the transaction was accepted by the node.
func (r SendResult) OK() bool {
	return r.Err == nil
}

// Client defines the common interface that any chain implementation must
// provide so the payment layers can interact with different networks
// uniformly.
type Client interface {
	// ChainID returns the EIP-155 chain identifier used when signing.
	ChainID(ctx context.Context) (*big.Int, error)
	// BalanceAt returns the latest confirmed balance of the address in wei.
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	// PendingNonceAt returns the next usable nonce including pending txs.
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
	// LatestHeader returns the head block header, used for base fee lookups.
	LatestHeader(ctx context.Context) (*types.Header, error)
	// SuggestGasTipCap returns the node's suggested priority fee in wei.
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	// SuggestGasPrice returns the node's suggested legacy gas price in wei.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	// SendTransaction broadcasts a single signed transaction.
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	// SendBatchTransactions broadcasts multiple signed transactions in a
	// single RPC batch call. The returned slice has one entry per input
	// transaction; a failed element does not abort the rest of the batch.
	SendBatchTransactions(ctx context.Context, txs []*types.Transaction) ([]SendResult, error)
	// Close releases network connections held by the client.
	Close()
}
