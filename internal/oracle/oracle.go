// Package oracle provides fiat spot prices for balance and payment
// summaries. Price lookups are best effort: callers treat an unavailable
// oracle as a soft failure and omit the fiat figure.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

const (
	// CodeUnavailable 表示报价来源暂时不可用，可重试。
	CodeUnavailable xerrors.Code = "ORACLE_UNAVAILABLE"
)

func init() {
	xerrors.Register(CodeUnavailable, xerrors.Attributes{
		Message:   "price oracle unavailable",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
}

// ErrUnavailable 表示本次报价失败,调用方应降级展示。
var ErrUnavailable = xerrors.New(CodeUnavailable, "price oracle unavailable")

// PriceSource 抽象一种法币报价来源。
type PriceSource interface {
	// SpotPrice 返回 1 ETH 对应的法币现价。
	SpotPrice(ctx context.Context) (float64, error)
}

// CoinGeckoConfig 描述 CoinGecko 报价客户端的参数。
type CoinGeckoConfig struct {
	BaseURL  string
	Currency string
	Timeout  time.Duration
}

// CoinGecko 通过 CoinGecko 的 simple/price 接口查询 ETH 现价。
type CoinGecko struct {
	baseURL  string
	currency string
	client   *http.Client
}

var _ PriceSource = (*CoinGecko)(nil)

// NewCoinGecko 创建报价客户端。
func NewCoinGecko(cfg CoinGeckoConfig) *CoinGecko {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com"
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "usd"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinGecko{
		baseURL:  baseURL,
		currency: currency,
		client:   &http.Client{Timeout: timeout},
	}
}

// SpotPrice 实现 PriceSource 接口。
func (c *CoinGecko) SpotPrice(ctx context.Context) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/simple/price?ids=ethereum&vs_currencies=%s",
		c.baseURL, url.QueryEscape(c.currency))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, xerrors.Wrap(CodeUnavailable, err, "构造报价请求失败")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, xerrors.Wrap(CodeUnavailable, err, "查询 ETH 价格失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, xerrors.New(CodeUnavailable, fmt.Sprintf("报价接口返回状态码 %d", resp.StatusCode))
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, xerrors.Wrap(CodeUnavailable, err, "解析报价响应失败")
	}
	price, ok := payload["ethereum"][c.currency]
	if !ok {
		return 0, ErrUnavailable
	}
	return price, nil
}
