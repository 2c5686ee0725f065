package identity

import (
	"context"
	"database/sql"
	stdErrors "errors"

	"github.com/go-sql-driver/mysql"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

// MySQLDirectory 使用 MySQL 持久化用户名与身份的映射。
type MySQLDirectory struct {
	db *sql.DB
}

// NewMySQLDirectory 基于已建立的连接池创建目录，并确保表结构存在。
func NewMySQLDirectory(db *sql.DB) (*MySQLDirectory, error) {
	if db == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "数据库连接不能为空")
	}
	const schema = `CREATE TABLE IF NOT EXISTS identity_handles (
        handle VARCHAR(64) PRIMARY KEY,
        owner_id VARCHAR(64) NOT NULL,
        updated_at BIGINT NOT NULL DEFAULT 0,
        INDEX idx_handle_owner (owner_id)
)`
	if _, err := db.Exec(schema); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 identity_handles 表失败")
	}
	return &MySQLDirectory{db: db}, nil
}

// Resolve 实现 Directory 接口。
func (d *MySQLDirectory) Resolve(ctx context.Context, handle Handle) (UserID, error) {
	normalized := NormalizeHandle(handle.String())
	const stmt = `SELECT owner_id FROM identity_handles WHERE handle = ?`

	var owner string
	if err := d.db.QueryRowContext(ctx, stmt, normalized.String()).Scan(&owner); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return Zero, ErrHandleNotFound
		}
		return Zero, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询用户名映射失败")
	}
	return UserID(owner), nil
}

// Record 实现 Directory 接口。
func (d *MySQLDirectory) Record(ctx context.Context, handle Handle, owner UserID) error {
	normalized := NormalizeHandle(handle.String())
	if normalized == "" || owner.IsZero() {
		return nil
	}
	const stmt = `INSERT INTO identity_handles (handle, owner_id, updated_at)
        VALUES (?, ?, UNIX_TIMESTAMP())
        ON DUPLICATE KEY UPDATE owner_id = VALUES(owner_id), updated_at = VALUES(updated_at)`

	if _, err := d.db.ExecContext(ctx, stmt, normalized.String(), owner.String()); err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入用户名映射失败")
	}
	return nil
}

var _ Directory = (*MySQLDirectory)(nil)
