// Package paybot provides a lightweight Go client for the payment engine's
// REST API. It mirrors the server's request and response shapes and reports
// server side failures as *APIError values.
package paybot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the payment engine REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Wallet is the custody wallet view returned by the wallet endpoints. The
// private key is only present directly after a fresh provision.
type Wallet struct {
	Owner      string `json:"owner"`
	Address    string `json:"address"`
	PrivateKey string `json:"private_key,omitempty"`
	Created    bool   `json:"created"`
}

// ScheduleRequest creates a recurring or one-time payment.
type ScheduleRequest struct {
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Schedule  string `json:"schedule"`
}

// Payment is a scheduled payment record.
type Payment struct {
	ID               string    `json:"id"`
	Owner            string    `json:"owner"`
	RecipientAddress string    `json:"recipient_address"`
	RecipientDisplay string    `json:"recipient_display"`
	AmountETH        string    `json:"amount_eth"`
	NextExecution    time.Time `json:"next_execution"`
	Active           bool      `json:"active"`
}

// TransferItem is one recipient in a batch transfer.
type TransferItem struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// TransferResult is the on-chain outcome for one recipient.
type TransferResult struct {
	Recipient string `json:"recipient"`
	Address   string `json:"address,omitempty"`
	AmountETH string `json:"amount_eth"`
	TxHash    string `json:"tx_hash,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ContactResult reports what a contact registration migrated and delivered.
type ContactResult struct {
	UserID         string `json:"user_id"`
	Handle         string `json:"handle"`
	WalletMigrated bool   `json:"wallet_migrated"`
	Readdressed    int    `json:"readdressed"`
	Delivered      int    `json:"delivered"`
}

// Notification is a pending outbox entry.
type Notification struct {
	ID        string            `json:"id"`
	Recipient string            `json:"recipient"`
	Kind      string            `json:"kind"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Stats summarises the payment store.
type Stats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Due    int `json:"due"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("paybot api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the payment engine API. When httpClient
// is nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// BindWallet provisions a wallet for the owner, or imports the given private
// key. Binding an owner that already has a wallet returns the existing one.
func (c *Client) BindWallet(ctx context.Context, owner, privateKey string) (Wallet, error) {
	payload := struct {
		Owner      string `json:"owner"`
		PrivateKey string `json:"private_key,omitempty"`
	}{Owner: owner, PrivateKey: privateKey}

	var wallet Wallet
	if err := c.post(ctx, "/api/v1/wallets", payload, &wallet); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

// WalletOf fetches the wallet bound to the owner.
func (c *Client) WalletOf(ctx context.Context, owner string) (Wallet, error) {
	var wallet Wallet
	endpoint := "/api/v1/wallets?owner=" + url.QueryEscape(owner)
	if err := c.get(ctx, endpoint, &wallet); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

// SchedulePayment creates a scheduled payment.
func (c *Client) SchedulePayment(ctx context.Context, req ScheduleRequest) (Payment, error) {
	var created Payment
	if err := c.post(ctx, "/api/v1/payments", req, &created); err != nil {
		return Payment{}, err
	}
	return created, nil
}

// Payments lists the owner's scheduled payments.
func (c *Client) Payments(ctx context.Context, owner string) ([]Payment, error) {
	var listed []Payment
	endpoint := "/api/v1/payments?owner=" + url.QueryEscape(owner)
	if err := c.get(ctx, endpoint, &listed); err != nil {
		return nil, err
	}
	return listed, nil
}

// CancelPayment deactivates a scheduled payment owned by owner.
func (c *Client) CancelPayment(ctx context.Context, owner, id string) error {
	endpoint := "/api/v1/payments/" + url.PathEscape(id) + "?owner=" + url.QueryEscape(owner)
	return c.delete(ctx, endpoint)
}

// Send executes an immediate transfer to a single recipient.
func (c *Client) Send(ctx context.Context, owner, recipient, amount string) (TransferResult, error) {
	payload := struct {
		Owner     string `json:"owner"`
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
	}{Owner: owner, Recipient: recipient, Amount: amount}

	var result TransferResult
	if err := c.post(ctx, "/api/v1/transfers", payload, &result); err != nil {
		return TransferResult{}, err
	}
	return result, nil
}

// SendBatch executes an immediate transfer to several recipients.
func (c *Client) SendBatch(ctx context.Context, owner string, items []TransferItem) ([]TransferResult, error) {
	payload := struct {
		Owner string         `json:"owner"`
		Items []TransferItem `json:"items"`
	}{Owner: owner, Items: items}

	var results []TransferResult
	if err := c.post(ctx, "/api/v1/transfers", payload, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// RegisterContact binds a handle to a canonical user identity and claims any
// provisional wallet and pending notifications held under the handle.
func (c *Client) RegisterContact(ctx context.Context, userID, handle string) (ContactResult, error) {
	payload := struct {
		UserID string `json:"user_id"`
		Handle string `json:"handle"`
	}{UserID: userID, Handle: handle}

	var result ContactResult
	if err := c.post(ctx, "/api/v1/contacts", payload, &result); err != nil {
		return ContactResult{}, err
	}
	return result, nil
}

// Notifications lists the recipient's pending notifications.
func (c *Client) Notifications(ctx context.Context, recipient string) ([]Notification, error) {
	var pending []Notification
	endpoint := "/api/v1/notifications?recipient=" + url.QueryEscape(recipient)
	if err := c.get(ctx, endpoint, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// Stats fetches payment store statistics.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := c.get(ctx, "/api/v1/stats", &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) delete(ctx context.Context, endpoint string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
