package payment

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/go-sql-driver/mysql"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/schedule"
	"github.com/Greeshmanth19/payment-bot-crypto/pkg/logger"
)

// MySQLStore 使用 MySQL 持久化支付记录。
type MySQLStore struct {
	db  *sql.DB
	log *slog.Logger
}

var _ Store = (*MySQLStore)(nil)

// NewMySQLStore 基于已建立的连接池创建存储，并确保表结构存在。
func NewMySQLStore(db *sql.DB) (*MySQLStore, error) {
	if db == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "数据库连接不能为空")
	}
	const schema = `CREATE TABLE IF NOT EXISTS scheduled_payments (
        id VARCHAR(36) PRIMARY KEY,
        owner_id VARCHAR(64) NOT NULL,
        sender_address VARCHAR(42) NOT NULL,
        recipient_address VARCHAR(42) NOT NULL,
        recipient_display VARCHAR(128) NOT NULL DEFAULT '',
        amount_eth VARCHAR(64) NOT NULL,
        amount_wei VARCHAR(80) NOT NULL,
        schedule_kind VARCHAR(16) NOT NULL,
        schedule_weekday TINYINT NOT NULL DEFAULT 0,
        schedule_every_days INT NOT NULL DEFAULT 0,
        schedule_at BIGINT NOT NULL DEFAULT 0,
        next_execution BIGINT NOT NULL,
        active TINYINT(1) NOT NULL DEFAULT 1,
        provisioned_key VARCHAR(66) NOT NULL DEFAULT '',
        created_at BIGINT NOT NULL,
        INDEX idx_payments_owner (owner_id),
        INDEX idx_payments_due (active, next_execution)
)`
	if _, err := db.Exec(schema); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 scheduled_payments 表失败")
	}
	return &MySQLStore{db: db, log: logger.Named("payment.store")}, nil
}

// Create 实现 Store 接口。写入后立即回读校验；回读失败不视为致命,
// 退化为按归属扫描的兜底查找并记录日志。
func (s *MySQLStore) Create(ctx context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "支付记录缺少 ID")
	}

	const stmt = `INSERT INTO scheduled_payments
        (id, owner_id, sender_address, recipient_address, recipient_display,
         amount_eth, amount_wei, schedule_kind, schedule_weekday, schedule_every_days,
         schedule_at, next_execution, active, provisioned_key, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	active := 0
	if record.Active {
		active = 1
	}
	amountWei := "0"
	if record.AmountWei != nil {
		amountWei = record.AmountWei.String()
	}
	if _, err := s.db.ExecContext(ctx, stmt,
		record.ID, record.Owner.String(), record.SenderAddress, record.RecipientAddress,
		record.RecipientDisplay, record.AmountETH, amountWei,
		string(record.Schedule.Kind), int(record.Schedule.Weekday), record.Schedule.EveryDays,
		unixOrZero(record.Schedule.At), record.NextExecution.Unix(), active,
		record.ProvisionedKey, record.CreatedAt.Unix(),
	); err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入支付记录失败")
	}

	if _, err := s.Get(ctx, record.ID); err != nil {
		s.log.Warn("支付记录回读失败，执行兜底扫描",
			slog.String("payment_id", record.ID),
			slog.Any("error", err),
		)
		owned, listErr := s.ListByOwner(ctx, record.Owner)
		if listErr != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, listErr, "支付记录写入后无法确认")
		}
		for _, candidate := range owned {
			if candidate.ID == record.ID {
				return nil
			}
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "支付记录写入后无法确认")
	}
	return nil
}

// Get 实现 Store 接口。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Record, error) {
	const stmt = selectColumns + ` WHERE id = ?`
	record, err := scanRecord(s.db.QueryRowContext(ctx, stmt, id))
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询支付记录失败")
	}
	return record, nil
}

// ListByOwner 实现 Store 接口。
func (s *MySQLStore) ListByOwner(ctx context.Context, owner identity.UserID) ([]*Record, error) {
	const stmt = selectColumns + ` WHERE owner_id = ? ORDER BY created_at ASC, id ASC`
	return s.queryRecords(ctx, stmt, owner.String())
}

// ListDue 实现 Store 接口。
func (s *MySQLStore) ListDue(ctx context.Context, now time.Time) ([]*Record, error) {
	const stmt = selectColumns + ` WHERE active = 1 AND next_execution <= ? ORDER BY next_execution ASC, id ASC`
	return s.queryRecords(ctx, stmt, now.Unix())
}

// Reschedule 实现 Store 接口。
func (s *MySQLStore) Reschedule(ctx context.Context, id string, next time.Time) error {
	return s.update(ctx, `UPDATE scheduled_payments SET next_execution = ? WHERE id = ?`, next.Unix(), id)
}

// Deactivate 实现 Store 接口。
func (s *MySQLStore) Deactivate(ctx context.Context, id string) error {
	return s.update(ctx, `UPDATE scheduled_payments SET active = 0 WHERE id = ?`, id)
}

// Delete 实现 Store 接口。
func (s *MySQLStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_payments WHERE id = ?`, id)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "删除支付记录失败")
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats 实现 Store 接口。
func (s *MySQLStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	const stmt = `SELECT COUNT(*),
        COALESCE(SUM(active), 0),
        COALESCE(SUM(CASE WHEN active = 1 AND next_execution <= ? THEN 1 ELSE 0 END), 0)
        FROM scheduled_payments`
	var stats Stats
	if err := s.db.QueryRowContext(ctx, stmt, now.Unix()).Scan(&stats.Total, &stats.Active, &stats.Due); err != nil {
		return Stats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "统计支付记录失败")
	}
	return stats, nil
}

// Close 关闭底层连接池。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const selectColumns = `SELECT id, owner_id, sender_address, recipient_address, recipient_display,
        amount_eth, amount_wei, schedule_kind, schedule_weekday, schedule_every_days,
        schedule_at, next_execution, active, provisioned_key, created_at
        FROM scheduled_payments`

func (s *MySQLStore) update(ctx context.Context, stmt string, args ...any) error {
	result, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新支付记录失败")
	}
	if affected, raErr := result.RowsAffected(); raErr == nil && affected == 0 {
		if _, getErr := s.Get(ctx, args[len(args)-1].(string)); getErr != nil {
			return ErrNotFound
		}
	}
	return nil
}

func (s *MySQLStore) queryRecords(ctx context.Context, stmt string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询支付记录失败")
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取支付记录失败")
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历支付记录失败")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record     Record
		owner      string
		amountWei  string
		kind       string
		weekday    int
		scheduleAt int64
		next       int64
		active     int
		createdAt  int64
	)
	if err := row.Scan(
		&record.ID, &owner, &record.SenderAddress, &record.RecipientAddress,
		&record.RecipientDisplay, &record.AmountETH, &amountWei,
		&kind, &weekday, &record.Schedule.EveryDays,
		&scheduleAt, &next, &active, &record.ProvisionedKey, &createdAt,
	); err != nil {
		return nil, err
	}
	record.Owner = identity.UserID(owner)
	record.Schedule.Kind = schedule.Kind(kind)
	record.Schedule.Weekday = time.Weekday(weekday)
	if scheduleAt > 0 {
		record.Schedule.At = time.Unix(scheduleAt, 0).UTC()
	}
	record.NextExecution = time.Unix(next, 0).UTC()
	record.Active = active != 0
	record.CreatedAt = time.Unix(createdAt, 0).UTC()
	wei, ok := new(big.Int).SetString(amountWei, 10)
	if !ok {
		wei = new(big.Int)
	}
	record.AmountWei = wei
	return &record, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
