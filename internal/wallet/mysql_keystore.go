package wallet

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"time"

	"github.com/go-sql-driver/mysql"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
)

// MySQLKeystore 使用 MySQL 托管钱包记录。
type MySQLKeystore struct {
	db *sql.DB
}

// NewMySQLKeystore 基于已建立的连接池创建托管存储，并确保表结构存在。
func NewMySQLKeystore(db *sql.DB) (*MySQLKeystore, error) {
	if db == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "数据库连接不能为空")
	}
	const schema = `CREATE TABLE IF NOT EXISTS wallets (
        owner_id VARCHAR(64) PRIMARY KEY,
        address VARCHAR(42) NOT NULL,
        private_key VARCHAR(66) NOT NULL,
        handle VARCHAR(64) DEFAULT '',
        imported TINYINT(1) NOT NULL DEFAULT 0,
        created_at BIGINT NOT NULL,
        INDEX idx_wallet_address (address)
)`
	if _, err := db.Exec(schema); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 wallets 表失败")
	}
	return &MySQLKeystore{db: db}, nil
}

// Get 实现 Keystore 接口。
func (s *MySQLKeystore) Get(ctx context.Context, owner identity.UserID) (Record, error) {
	const stmt = `SELECT address, private_key, handle, imported, created_at FROM wallets WHERE owner_id = ?`

	var (
		record    Record
		imported  int
		createdAt int64
	)
	if err := s.db.QueryRowContext(ctx, stmt, owner.String()).Scan(
		&record.Address, &record.PrivateKeyHex, &record.Handle, &imported, &createdAt,
	); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询钱包失败")
	}
	record.Imported = imported != 0
	record.CreatedAt = time.Unix(createdAt, 0)
	return record, nil
}

// Put 实现 Keystore 接口。
func (s *MySQLKeystore) Put(ctx context.Context, owner identity.UserID, record Record) error {
	if owner.IsZero() {
		return xerrors.New(xerrors.CodeInvalidArgument, "钱包归属身份不能为空")
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	imported := 0
	if record.Imported {
		imported = 1
	}

	const stmt = `INSERT INTO wallets (owner_id, address, private_key, handle, imported, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE address = VALUES(address), private_key = VALUES(private_key),
            handle = VALUES(handle), imported = VALUES(imported)`

	if _, err := s.db.ExecContext(ctx, stmt,
		owner.String(), record.Address, record.PrivateKeyHex, record.Handle, imported, createdAt.Unix(),
	); err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return xerrors.New(xerrors.CodeConflict, "钱包记录写入冲突")
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入钱包失败")
	}
	return nil
}

// Close 关闭底层连接池。
func (s *MySQLKeystore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Keystore = (*MySQLKeystore)(nil)
