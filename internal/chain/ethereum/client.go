package ethereum

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/chain"
	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

// Config describes how to construct an EVM compatible client.
type Config struct {
	Name        string
	RPCURL      string
	BatchRPCURL string
	ChainID     int64
	Notes       string
}

// Client implements the chain.Client interface for EVM compatible chains.
type Client struct {
	name        string
	notes       string
	rpcClient   *gethrpc.Client
	batchClient *gethrpc.Client
	eth         *ethclient.Client

	mu      sync.Mutex
	chainID *big.Int
}

var _ chain.Client = (*Client)(nil)

// NewClient dials the configured RPC endpoints and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}

	eth := ethclient.NewClient(rpcClient)

	batchClient := rpcClient
	if batchURL := strings.TrimSpace(cfg.BatchRPCURL); batchURL != "" && batchURL != rpcURL {
		batchClient, err = gethrpc.DialContext(ctx, batchURL)
		if err != nil {
			return nil, fmt.Errorf("连接批量交易节点失败: %w", err)
		}
	}

	var chainID *big.Int
	if cfg.ChainID > 0 {
		chainID = big.NewInt(cfg.ChainID)
	}

	return &Client{
		name:        cfg.Name,
		notes:       cfg.Notes,
		rpcClient:   rpcClient,
		batchClient: batchClient,
		eth:         eth,
		chainID:     chainID,
	}, nil
}

// Name returns the configured human readable chain name.
func (c *Client) Name() string {
	return c.name
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	if c.batchClient != nil && c.batchClient != c.rpcClient {
		c.batchClient.Close()
	}
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
	c.rpcClient = nil
	c.batchClient = nil
}

// ChainID returns the EIP-155 identifier, fetching and caching it from the
// node when the configuration did not pin one.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	if c.chainID != nil {
		id := new(big.Int).Set(c.chainID)
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	if c.eth == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, xerrors.Wrap(chain.CodeChainRPC, err, "获取链 ID 失败")
	}

	c.mu.Lock()
	c.chainID = new(big.Int).Set(id)
	c.mu.Unlock()
	return id, nil
}

// BalanceAt returns the latest confirmed balance of the address in wei.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	if c.eth == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	balance, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, xerrors.Wrap(chain.CodeChainRPC, err, "查询余额失败")
	}
	return balance, nil
}

// PendingNonceAt returns the next usable nonce including pending transactions.
func (c *Client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	if c.eth == nil {
		return 0, errors.New("未初始化的以太坊客户端")
	}
	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, xerrors.Wrap(chain.CodeChainRPC, err, "查询交易计数失败")
	}
	return nonce, nil
}

// LatestHeader returns the head block header.
func (c *Client) LatestHeader(ctx context.Context) (*coretypes.Header, error) {
	if c.eth == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, xerrors.Wrap(chain.CodeChainRPC, err, "获取最新区块头失败")
	}
	return header, nil
}

// SuggestGasTipCap returns the node's suggested priority fee in wei.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if c.eth == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, xerrors.Wrap(chain.CodeChainRPC, err, "查询优先费失败")
	}
	return tip, nil
}

// SuggestGasPrice returns the node's suggested legacy gas price in wei.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if c.eth == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, xerrors.Wrap(chain.CodeChainRPC, err, "查询 gas 价格失败")
	}
	return price, nil
}

// SendTransaction broadcasts a single signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *coretypes.Transaction) error {
	if c.eth == nil {
		return errors.New("未初始化的以太坊客户端")
	}
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return xerrors.Wrap(chain.CodeTxSubmit, err, "发送交易失败")
	}
	return nil
}

// SendBatchTransactions broadcasts multiple signed transactions in a single
// RPC batch call. Each element carries its own outcome so a rejected
// transaction does not void the rest of the batch.
func (c *Client) SendBatchTransactions(ctx context.Context, txs []*coretypes.Transaction) ([]chain.SendResult, error) {
	if len(txs) == 0 {
		return nil, errors.New("没有可发送的交易")
	}
	if c.batchClient == nil {
		return nil, errors.New("当前客户端未配置批量 RPC")
	}

	results := make([]chain.SendResult, len(txs))
	elems := make([]gethrpc.BatchElem, len(txs))
	for i, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("序列化交易失败: %w", err)
		}
		hexPayload := "0x" + hex.EncodeToString(raw)
		elems[i] = gethrpc.BatchElem{
			Method: "eth_sendRawTransaction",
			Args:   []any{hexPayload},
			Result: &results[i].Hash,
		}
	}

	if err := c.batchClient.BatchCallContext(ctx, elems); err != nil {
		return nil, xerrors.Wrap(chain.CodeChainRPC, err, "批量发送交易失败")
	}
	for i := range elems {
		if elems[i].Error != nil {
			results[i].Err = xerrors.Wrap(chain.CodeTxSubmit, elems[i].Error, fmt.Sprintf("交易 %d 发送失败", i))
			results[i].Hash = common.Hash{}
		}
	}
	return results, nil
}
