// Package wallet implements the key-custody collaborator. The engine runs
// as an operator-trusted process and keeps plaintext key material; hardware
// or trustless custody is explicitly out of scope.
package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

const (
	// CodeWalletNotFound 表示身份尚未绑定钱包。
	CodeWalletNotFound xerrors.Code = "WALLET_NOT_FOUND"
	// CodeWalletInvalidKey 表示私钥格式非法。
	CodeWalletInvalidKey xerrors.Code = "WALLET_INVALID_KEY"
)

func init() {
	xerrors.Register(CodeWalletNotFound, xerrors.Attributes{
		Message:   "wallet not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeWalletInvalidKey, xerrors.Attributes{
		Message:   "invalid private key",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// ErrNotFound 表示指定身份没有托管钱包。
var ErrNotFound = xerrors.New(CodeWalletNotFound, "wallet not found")

// Record 保存一个托管钱包。Address 为 EIP-55 校验格式，PrivateKeyHex 带 0x 前缀。
type Record struct {
	Address       string    `json:"address"`
	PrivateKeyHex string    `json:"private_key"`
	Handle        string    `json:"handle,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Imported      bool      `json:"imported,omitempty"`
}

// Provision 即时生成一个新钱包，用于没有已知收款地址的收款方。
func Provision() (Record, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Record{}, xerrors.Wrap(xerrors.CodeUnknown, err, "生成钱包密钥失败")
	}
	return Record{
		Address:       crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKeyHex: "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
		CreatedAt:     time.Now(),
	}, nil
}

// Key 还原记录中的 secp256k1 私钥，用于交易签名。
func (r Record) Key() (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(r.PrivateKeyHex, "0x")
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, xerrors.Wrap(CodeWalletInvalidKey, err, "解析私钥失败")
	}
	return key, nil
}

// ParsePrivateKey 校验导入的私钥（0x + 64 位十六进制）并还原出钱包记录。
func ParsePrivateKey(raw string) (Record, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "0x") || len(trimmed) != 66 {
		return Record{}, xerrors.New(CodeWalletInvalidKey, "私钥需为 0x 加 64 位十六进制字符")
	}
	key, err := crypto.HexToECDSA(trimmed[2:])
	if err != nil {
		return Record{}, xerrors.Wrap(CodeWalletInvalidKey, err, "解析私钥失败")
	}
	return Record{
		Address:       crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKeyHex: trimmed,
		CreatedAt:     time.Now(),
		Imported:      true,
	}, nil
}

// IsAddress 判断字符串是否为合法的以太坊地址。
func IsAddress(raw string) bool {
	return common.IsHexAddress(raw)
}
