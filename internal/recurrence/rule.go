package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRule 在规则字段不合法时返回
var ErrInvalidRule = errors.New("invalid recurrence rule")

// Frequency 表示重复频率
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// Weekday 使用两位字母标签表示星期，与日历侧的约定保持一致
type Weekday string

const (
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
	Sunday    Weekday = "SU"
)

// weekdayOffsets 以周一为一周起点的偏移量
var weekdayOffsets = map[Weekday]int{
	Monday:    0,
	Tuesday:   1,
	Wednesday: 2,
	Thursday:  3,
	Friday:    4,
	Saturday:  5,
	Sunday:    6,
}

// Rule 描述一条声明式重复规则
// ByWeekDay 仅对 WEEKLY 生效且不能为空
// DayReminderTimes/DayReminderTimeRange/DeadlineAlarms 为有序字符串列表，
// 其具体语义（时刻还是偏移）由提醒投递方定义，引擎只负责透传
type Rule struct {
	Frequency            Frequency
	Interval             int
	ByWeekDay            []Weekday
	StartDate            time.Time
	EndDate              *time.Time
	DayReminderTimeRange []string
	DayReminderTimes     []string
	DeadlineAlarms       []string
}

// Validate 校验规则字段，全部问题都包装在 ErrInvalidRule 上
func (r Rule) Validate() error {
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		return fmt.Errorf("%w: unsupported frequency %q", ErrInvalidRule, r.Frequency)
	}

	if r.Interval < 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidRule)
	}

	if r.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidRule)
	}

	if r.EndDate != nil && NormalizeDate(*r.EndDate).Before(NormalizeDate(r.StartDate)) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidRule)
	}

	if r.Frequency == FrequencyWeekly {
		if len(r.ByWeekDay) == 0 {
			return fmt.Errorf("%w: weekly rule requires byWeekDay", ErrInvalidRule)
		}
		for _, day := range r.ByWeekDay {
			if _, ok := weekdayOffsets[day]; !ok {
				return fmt.Errorf("%w: unknown weekday tag %q", ErrInvalidRule, day)
			}
		}
	}

	return nil
}

// EffectiveInterval 返回规则间隔，0 视为默认值 1
func (r Rule) EffectiveInterval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// CadenceDays 返回相邻两次应打卡日期之间允许的最大天数，
// 连胜判定用它衡量是否出现漏打：间隔超过该值即视为断档。
// WEEKLY 规则按 byWeekDay 中相邻（含跨周回绕）星期的最大间隔计算。
func (r Rule) CadenceDays() int {
	interval := r.EffectiveInterval()

	switch r.Frequency {
	case FrequencyDaily:
		return interval
	case FrequencyWeekly:
		offsets := r.sortedWeekdayOffsets()
		if len(offsets) == 0 {
			return 7 * interval
		}
		maxGap := 0
		for i := 0; i < len(offsets); i++ {
			var gap int
			if i == len(offsets)-1 {
				// 回绕到下一个周期的第一个选中星期
				gap = offsets[0] + 7*interval - offsets[i]
			} else {
				gap = offsets[i+1] - offsets[i]
			}
			if gap > maxGap {
				maxGap = gap
			}
		}
		return maxGap
	case FrequencyMonthly:
		return 31 * interval
	case FrequencyYearly:
		return 366 * interval
	default:
		return interval
	}
}

func (r Rule) sortedWeekdayOffsets() []int {
	seen := make(map[int]struct{}, len(r.ByWeekDay))
	offsets := make([]int, 0, len(r.ByWeekDay))
	for _, day := range r.ByWeekDay {
		offset, ok := weekdayOffsets[day]
		if !ok {
			continue
		}
		if _, dup := seen[offset]; dup {
			continue
		}
		seen[offset] = struct{}{}
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)
	return offsets
}

// ParseFrequency 解析频率枚举，容忍大小写
func ParseFrequency(value string) (Frequency, error) {
	switch Frequency(strings.ToUpper(strings.TrimSpace(value))) {
	case FrequencyDaily:
		return FrequencyDaily, nil
	case FrequencyWeekly:
		return FrequencyWeekly, nil
	case FrequencyMonthly:
		return FrequencyMonthly, nil
	case FrequencyYearly:
		return FrequencyYearly, nil
	default:
		return "", fmt.Errorf("%w: unsupported frequency %q", ErrInvalidRule, value)
	}
}

// ParseWeekdays 解析两位字母的星期标签列表
func ParseWeekdays(values []string) ([]Weekday, error) {
	days := make([]Weekday, 0, len(values))
	for _, value := range values {
		day := Weekday(strings.ToUpper(strings.TrimSpace(value)))
		if day == "" {
			continue
		}
		if _, ok := weekdayOffsets[day]; !ok {
			return nil, fmt.Errorf("%w: unknown weekday tag %q", ErrInvalidRule, value)
		}
		days = append(days, day)
	}
	return days, nil
}

// NormalizeDate 将时间截断到当天零点，保留原时区
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
