package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
)

// MySQLOutbox 在没有 Redis 的部署中用 MySQL 暂存通知。
type MySQLOutbox struct {
	db *sql.DB
}

var _ Outbox = (*MySQLOutbox)(nil)

// NewMySQLOutbox 基于已建立的连接池创建 Outbox，并确保表结构存在。
func NewMySQLOutbox(db *sql.DB) (*MySQLOutbox, error) {
	if db == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "数据库连接不能为空")
	}
	const schema = `CREATE TABLE IF NOT EXISTS outbox_notifications (
        id VARCHAR(36) PRIMARY KEY,
        recipient_id VARCHAR(64) NOT NULL,
        kind VARCHAR(32) NOT NULL,
        message TEXT NOT NULL,
        metadata TEXT,
        created_at BIGINT NOT NULL,
        INDEX idx_outbox_recipient (recipient_id, created_at)
)`
	if _, err := db.Exec(schema); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 outbox_notifications 表失败")
	}
	return &MySQLOutbox{db: db}, nil
}

// Append 实现 Outbox 接口。主键冲突视为重复追加，直接忽略。
func (o *MySQLOutbox) Append(ctx context.Context, n Notification) error {
	var metadata []byte
	if len(n.Metadata) > 0 {
		encoded, err := json.Marshal(n.Metadata)
		if err != nil {
			return xerrors.Wrap(CodeOutbox, err, "序列化通知元数据失败")
		}
		metadata = encoded
	}
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const stmt = `INSERT INTO outbox_notifications (id, recipient_id, kind, message, metadata, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := o.db.ExecContext(ctx, stmt,
		n.ID, n.Recipient.String(), string(n.Kind), n.Message, metadata, createdAt.Unix(),
	); err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil
		}
		return xerrors.Wrap(CodeOutbox, err, "写入通知失败")
	}
	return nil
}

// Pending 实现 Outbox 接口。
func (o *MySQLOutbox) Pending(ctx context.Context, recipient identity.UserID) ([]Notification, error) {
	const stmt = `SELECT id, kind, message, metadata, created_at FROM outbox_notifications
        WHERE recipient_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := o.db.QueryContext(ctx, stmt, recipient.String())
	if err != nil {
		return nil, xerrors.Wrap(CodeOutbox, err, "查询通知失败")
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		var (
			n         Notification
			kind      string
			metadata  sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&n.ID, &kind, &n.Message, &metadata, &createdAt); err != nil {
			return nil, xerrors.Wrap(CodeOutbox, err, "读取通知失败")
		}
		n.Recipient = recipient
		n.Kind = Kind(kind)
		n.CreatedAt = time.Unix(createdAt, 0)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &n.Metadata); err != nil {
				n.Metadata = nil
			}
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(CodeOutbox, err, "遍历通知失败")
	}
	return items, nil
}

// Remove 实现 Outbox 接口。
func (o *MySQLOutbox) Remove(ctx context.Context, recipient identity.UserID, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	stmt := `DELETE FROM outbox_notifications WHERE recipient_id = ? AND id IN (` + placeholders + `)`

	args := make([]any, 0, len(ids)+1)
	args = append(args, recipient.String())
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := o.db.ExecContext(ctx, stmt, args...); err != nil {
		return xerrors.Wrap(CodeOutbox, err, "删除通知失败")
	}
	return nil
}

// Close 关闭底层连接池。
func (o *MySQLOutbox) Close() error {
	if o == nil || o.db == nil {
		return nil
	}
	return o.db.Close()
}
