package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

var (
	everyDaysPattern = regexp.MustCompile(`every\s+(\d+)\s+days?`)
	datePattern      = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})`)
)

// weekdayNames 按解析优先级排列，下标 0 对应周一。
var weekdayNames = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// Parse 将自由文本解析为计划描述符。匹配按固定顺序尝试：
// "every <weekday>"、"every <N> days"、"DD-MM-YY[YY]"（分隔符可为 - 或 /）。
// 文本不区分大小写并容忍多余空白；两位年份按当前世纪展开。
func Parse(text string, now time.Time) (Descriptor, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Descriptor{}, ErrUnrecognized
	}

	for i, day := range weekdayNames {
		if strings.Contains(normalized, "every "+day) {
			// 下标 0 为周一，转换到 time.Weekday 的周日起始编号。
			weekday := time.Weekday((i + 1) % 7)
			return Weekly(weekday), nil
		}
	}

	if match := everyDaysPattern.FindStringSubmatch(normalized); match != nil {
		days, err := strconv.Atoi(match[1])
		if err != nil || days <= 0 {
			return Descriptor{}, xerrors.New(CodeScheduleParse, "周期天数必须为正整数")
		}
		return Periodic(days), nil
	}

	if match := datePattern.FindStringSubmatch(normalized); match != nil {
		day, _ := strconv.Atoi(match[1])
		month, _ := strconv.Atoi(match[2])
		year, _ := strconv.Atoi(match[3])
		if year < 100 {
			year = (now.Year()/100)*100 + year
		}
		at := time.Date(year, time.Month(month), day, ExecutionHour, 0, 0, 0, now.Location())
		// time.Date 会对溢出的日期做进位，这里要求严格合法。
		if at.Year() != year || at.Month() != time.Month(month) || at.Day() != day {
			return Descriptor{}, xerrors.New(CodeScheduleParse, "日期不合法")
		}
		return OneTime(at), nil
	}

	return Descriptor{}, ErrUnrecognized
}
