// Package schedule turns free-form recurrence text into a normalized
// descriptor and computes execution times from it. Descriptors are value
// types and never mutated after creation.
package schedule

import (
	"fmt"
	"time"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

// Kind 表示计划的类别。
type Kind string

const (
	KindWeekly   Kind = "weekly"
	KindPeriodic Kind = "periodic"
	KindOneTime  Kind = "one-time"
)

// ExecutionHour 是周期与单次计划统一锚定的执行小时（正午）。
const ExecutionHour = 12

// Descriptor 描述一条规范化的付款计划，创建后不可变。
type Descriptor struct {
	Kind      Kind         `json:"kind"`
	Weekday   time.Weekday `json:"weekday,omitempty"`
	EveryDays int          `json:"every_days,omitempty"`
	At        time.Time    `json:"at,omitempty"`
}

// Weekly 构造每周固定星期的计划。
func Weekly(day time.Weekday) Descriptor {
	return Descriptor{Kind: KindWeekly, Weekday: day}
}

// Periodic 构造每 N 天一次的计划。
func Periodic(days int) Descriptor {
	return Descriptor{Kind: KindPeriodic, EveryDays: days}
}

// OneTime 构造指定时刻执行一次的计划。
func OneTime(at time.Time) Descriptor {
	return Descriptor{Kind: KindOneTime, At: at}
}

// IsValid 检查描述符的字段组合是否自洽。
func (d Descriptor) IsValid() bool {
	switch d.Kind {
	case KindWeekly:
		return d.Weekday >= time.Sunday && d.Weekday <= time.Saturday
	case KindPeriodic:
		return d.EveryDays > 0
	case KindOneTime:
		return !d.At.IsZero()
	default:
		return false
	}
}

// Describe 返回面向用户的计划描述。
func (d Descriptor) Describe() string {
	switch d.Kind {
	case KindWeekly:
		return fmt.Sprintf("every %s", d.Weekday)
	case KindPeriodic:
		return fmt.Sprintf("every %d days", d.EveryDays)
	case KindOneTime:
		return fmt.Sprintf("one time on %s", d.At.Format("Monday, January 2, 2006 at 15:04"))
	default:
		return "unknown schedule"
	}
}

const (
	// CodeScheduleParse 表示计划文本无法识别或日期非法。
	CodeScheduleParse xerrors.Code = "SCHEDULE_PARSE_FAILED"
)

func init() {
	xerrors.Register(CodeScheduleParse, xerrors.Attributes{
		Message:   "schedule text not recognized",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// ErrUnrecognized 表示输入文本不匹配任何受支持的计划形式。
var ErrUnrecognized = xerrors.New(CodeScheduleParse, "unrecognized schedule text")
