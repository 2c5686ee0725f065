package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/notify"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/observability/metrics"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/payment"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/wallet"
)

// Server 负责暴露 REST 接口，供外部驱动支付引擎。
type Server struct {
	addr     string
	payments *payment.Service
	keys     wallet.Keystore
	dir      identity.Directory
	outbox   notify.Outbox
	drainer  *notify.Drainer
}

// NewServer 构造 API 服务实例。drainer 可以为 nil，
// 此时联系人登记只迁移待投递通知而不主动投递。
func NewServer(addr string, payments *payment.Service, keys wallet.Keystore, dir identity.Directory, outbox notify.Outbox, drainer *notify.Drainer) *Server {
	return &Server{
		addr:     addr,
		payments: payments,
		keys:     keys,
		dir:      dir,
		outbox:   outbox,
		drainer:  drainer,
	}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 返回包含全部路由的处理器，业务路由都挂上请求指标。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/api/v1/wallets", metrics.Middleware("wallets", http.HandlerFunc(s.handleWallets)))
	mux.Handle("/api/v1/payments", metrics.Middleware("payments", http.HandlerFunc(s.handlePayments)))
	mux.Handle("/api/v1/payments/", metrics.Middleware("payment_detail", http.HandlerFunc(s.handlePaymentDetail)))
	mux.Handle("/api/v1/transfers", metrics.Middleware("transfers", http.HandlerFunc(s.handleTransfers)))
	mux.Handle("/api/v1/contacts", metrics.Middleware("contacts", http.HandlerFunc(s.handleContacts)))
	mux.Handle("/api/v1/notifications", metrics.Middleware("notifications", http.HandlerFunc(s.handleNotifications)))
	mux.Handle("/api/v1/stats", metrics.Middleware("stats", http.HandlerFunc(s.handleStats)))
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// walletRequest 描述创建或导入钱包的请求体。
type walletRequest struct {
	Owner      string `json:"owner"`
	PrivateKey string `json:"private_key,omitempty"`
}

// walletResponse 仅在新生成钱包时携带私钥，导入或重复
// 创建时只返回地址。
type walletResponse struct {
	Owner      string `json:"owner"`
	Address    string `json:"address"`
	PrivateKey string `json:"private_key,omitempty"`
	Created    bool   `json:"created"`
}

func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleBindWallet(w, r)
	case http.MethodGet:
		s.handleShowWallet(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

// handleBindWallet 为身份生成或导入钱包。身份已有钱包时直接
// 返回既有地址，不会覆盖。
func (s *Server) handleBindWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	owner, err := identity.Parse(req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	if existing, err := s.keys.Get(ctx, owner); err == nil {
		writeJSON(w, http.StatusOK, walletResponse{
			Owner:   owner.String(),
			Address: existing.Address,
			Created: false,
		})
		return
	} else if !errors.Is(err, wallet.ErrNotFound) {
		writeError(w, err)
		return
	}

	var record wallet.Record
	if strings.TrimSpace(req.PrivateKey) != "" {
		record, err = wallet.ParsePrivateKey(req.PrivateKey)
	} else {
		record, err = wallet.Provision()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.keys.Put(ctx, owner, record); err != nil {
		writeError(w, err)
		return
	}

	resp := walletResponse{
		Owner:   owner.String(),
		Address: record.Address,
		Created: true,
	}
	if !record.Imported {
		resp.PrivateKey = record.PrivateKeyHex
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleShowWallet(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.Parse(r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	record, err := s.keys.Get(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, walletResponse{
		Owner:   owner.String(),
		Address: record.Address,
	})
}

// scheduleRequest 描述创建定时支付的请求体。
type scheduleRequest struct {
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Schedule  string `json:"schedule"`
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSchedulePayment(w, r)
	case http.MethodGet:
		s.handleListPayments(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSchedulePayment(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	owner, err := identity.Parse(req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	record, err := s.payments.Schedule(r.Context(), payment.ScheduleRequest{
		Owner:        owner,
		Recipient:    req.Recipient,
		AmountText:   req.Amount,
		ScheduleText: req.Schedule,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.Parse(r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := s.payments.List(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handlePaymentDetail 处理按 ID 取消单条定时支付。
func (s *Server) handlePaymentDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "仅支持 DELETE", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/payments/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "缺少支付记录 ID", http.StatusBadRequest)
		return
	}
	owner, err := identity.Parse(r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.payments.Cancel(r.Context(), owner, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "cancelled"})
}

// transferRequest 支持单笔与批量两种形态：items 非空时走批量。
type transferRequest struct {
	Owner     string `json:"owner"`
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Items     []struct {
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
	} `json:"items,omitempty"`
}

// transferResult 是单个收款方的链上执行结果。
type transferResult struct {
	Recipient string `json:"recipient"`
	Address   string `json:"address,omitempty"`
	AmountETH string `json:"amount_eth"`
	TxHash    string `json:"tx_hash,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	owner, err := identity.Parse(req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	if len(req.Items) > 0 {
		items := make([]payment.BatchItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, payment.BatchItem{
				Recipient:  item.Recipient,
				AmountText: item.Amount,
			})
		}
		outcomes, err := s.payments.SendBatchNow(ctx, owner, items)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, transferResults(outcomes))
		return
	}

	outcome, err := s.payments.SendNow(ctx, owner, req.Recipient, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transferResults([]payment.Outcome{outcome})[0])
}

func transferResults(outcomes []payment.Outcome) []transferResult {
	results := make([]transferResult, 0, len(outcomes))
	for _, o := range outcomes {
		res := transferResult{
			Recipient: o.Display,
			Address:   o.Address,
			AmountETH: o.AmountETH,
			TxHash:    o.TxHash,
		}
		if o.Err != nil {
			res.Error = o.Err.Error()
		}
		results = append(results, res)
	}
	return results
}

// contactRequest 把外部用户名与规范身份绑定起来。
type contactRequest struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
}

// contactResponse 汇报登记产生的迁移与投递情况。
type contactResponse struct {
	UserID         string `json:"user_id"`
	Handle         string `json:"handle"`
	WalletMigrated bool   `json:"wallet_migrated"`
	Readdressed    int    `json:"readdressed"`
	Delivered      int    `json:"delivered"`
}

// handleContacts 登记用户名与身份的映射。若该用户名此前作为
// 收款方被临时建档，把临时身份名下的钱包与待投递通知迁移到
// 正式身份，再尝试投递。
func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	owner, err := identity.Parse(req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	handle := identity.NormalizeHandle(req.Handle)
	if handle == "" {
		http.Error(w, "用户名不能为空", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := s.dir.Record(ctx, handle, owner); err != nil {
		writeError(w, err)
		return
	}

	resp := contactResponse{UserID: owner.String(), Handle: handle.String()}
	provisional := identity.FromHandle(handle)

	// 临时身份名下的钱包只在正式身份尚无钱包时接管，避免覆盖。
	if record, err := s.keys.Get(ctx, provisional); err == nil {
		if _, err := s.keys.Get(ctx, owner); errors.Is(err, wallet.ErrNotFound) {
			if err := s.keys.Put(ctx, owner, record); err != nil {
				writeError(w, err)
				return
			}
			resp.WalletMigrated = true
		}
	}

	moved, err := s.readdress(ctx, provisional, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	resp.Readdressed = moved

	if s.drainer != nil {
		delivered, err := s.drainer.Drain(ctx, owner)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Delivered = delivered
	}
	writeJSON(w, http.StatusOK, resp)
}

// readdress 把 from 名下的待投递通知改挂到 to 名下，保持原有顺序。
func (s *Server) readdress(ctx context.Context, from, to identity.UserID) (int, error) {
	pending, err := s.outbox.Pending(ctx, from)
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, n := range pending {
		n.Recipient = to
		if err := s.outbox.Append(ctx, n); err != nil {
			return moved, err
		}
		if err := s.outbox.Remove(ctx, from, n.ID); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	recipient, err := identity.Parse(r.URL.Query().Get("recipient"))
	if err != nil {
		writeError(w, err)
		return
	}
	pending, err := s.outbox.Pending(r.Context(), recipient)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.payments.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError 把错误码映射为 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch xerrors.CodeOf(err) {
	case payment.CodeValidation, xerrors.CodeInvalidArgument, wallet.CodeWalletInvalidKey:
		status = http.StatusBadRequest
	case payment.CodeNotFound, wallet.CodeWalletNotFound:
		status = http.StatusNotFound
	case payment.CodeConflict:
		status = http.StatusConflict
	case payment.CodeInsufficientFunds:
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
