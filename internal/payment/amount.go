package payment

import (
	"math/big"
	"strings"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

// weiPerETH 是 1 ETH 对应的 wei 数（10^18）。
var weiPerETH = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ParseAmount 将十进制 ETH 文本解析为最小单位 wei，返回规范化的
// 十进制表示与整数值。金额必须为正且精度不超过 18 位小数。
func ParseAmount(text string) (string, *big.Int, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil, xerrors.New(CodeValidation, "金额不能为空")
	}
	if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "+") {
		return "", nil, xerrors.New(CodeValidation, "金额必须是正数")
	}

	intPart := trimmed
	fracPart := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		intPart = trimmed[:idx]
		fracPart = trimmed[idx+1:]
	}
	if intPart == "" && fracPart == "" {
		return "", nil, xerrors.New(CodeValidation, "金额格式非法")
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return "", nil, xerrors.New(CodeValidation, "金额格式非法")
	}
	if len(fracPart) > 18 {
		return "", nil, xerrors.New(CodeValidation, "金额精度超过 18 位小数")
	}

	if intPart == "" {
		intPart = "0"
	}
	padded := fracPart + strings.Repeat("0", 18-len(fracPart))

	wei, ok := new(big.Int).SetString(intPart+padded, 10)
	if !ok {
		return "", nil, xerrors.New(CodeValidation, "金额格式非法")
	}
	if wei.Sign() <= 0 {
		return "", nil, xerrors.New(CodeValidation, "金额必须大于零")
	}
	return FormatWei(wei), wei, nil
}

// FormatWei 将 wei 转换为去掉多余零的十进制 ETH 文本。
func FormatWei(wei *big.Int) string {
	if wei == nil || wei.Sign() == 0 {
		return "0"
	}
	quo, rem := new(big.Int).QuoRem(wei, weiPerETH, new(big.Int))
	if rem.Sign() == 0 {
		return quo.String()
	}
	frac := rem.String()
	frac = strings.Repeat("0", 18-len(frac)) + frac
	frac = strings.TrimRight(frac, "0")
	return quo.String() + "." + frac
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
