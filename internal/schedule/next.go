package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

// Next 计算参考时间之后的下一次执行时刻。函数是纯函数：
//   - Weekly 按 cron 规则 "0 12 * * <weekday>" 求参考时间之后的下一次命中；
//   - Periodic 为参考时间加上间隔天数（首次以创建时间为参考，之后以上次执行为参考）；
//   - OneTime 原样返回存储的时间戳。
//
// 对 Weekly 与 Periodic，返回值严格晚于参考时间。
func Next(d Descriptor, ref time.Time) (time.Time, error) {
	switch d.Kind {
	case KindWeekly:
		spec := fmt.Sprintf("0 %d * * %d", ExecutionHour, int(d.Weekday))
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return time.Time{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "构造每周执行规则失败")
		}
		return sched.Next(ref), nil
	case KindPeriodic:
		if d.EveryDays <= 0 {
			return time.Time{}, xerrors.New(xerrors.CodeInvalidArgument, "周期天数必须为正整数")
		}
		return ref.AddDate(0, 0, d.EveryDays), nil
	case KindOneTime:
		if d.At.IsZero() {
			return time.Time{}, xerrors.New(xerrors.CodeInvalidArgument, "单次计划缺少执行时间")
		}
		return d.At, nil
	default:
		return time.Time{}, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的计划类别: %s", d.Kind))
	}
}
