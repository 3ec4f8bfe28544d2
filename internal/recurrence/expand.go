package recurrence

import "time"

// Expander 按规则在窗口内惰性产出具体日期
// 产出序列确定且可通过 Reset 重放；调用方需保证规则已通过 Validate
type Expander struct {
	rule        Rule
	lowerBound  time.Time
	upperBound  time.Time
	empty       bool
	periodIndex int
	weekdayIdx  int
	weekOffsets []int
	done        bool
}

// NewExpander 构造窗口展开器，窗口与规则有效期取交集
func NewExpander(rule Rule, windowStart, windowEnd time.Time) *Expander {
	start := NormalizeDate(rule.StartDate)
	lower := NormalizeDate(windowStart)
	if start.After(lower) {
		lower = start
	}

	upper := NormalizeDate(windowEnd)
	if rule.EndDate != nil {
		ruleEnd := NormalizeDate(*rule.EndDate)
		if ruleEnd.Before(upper) {
			upper = ruleEnd
		}
	}

	e := &Expander{
		rule:        rule,
		lowerBound:  lower,
		upperBound:  upper,
		empty:       upper.Before(lower),
		weekOffsets: rule.sortedWeekdayOffsets(),
	}
	return e
}

// Reset 重置游标，使序列可以从头重新产出
func (e *Expander) Reset() {
	e.periodIndex = 0
	e.weekdayIdx = 0
	e.done = false
}

// Next 返回序列中的下一个日期；序列耗尽时第二个返回值为 false
func (e *Expander) Next() (time.Time, bool) {
	if e.done || e.empty {
		return time.Time{}, false
	}

	for {
		candidate, ok := e.advance()
		if !ok {
			e.done = true
			return time.Time{}, false
		}
		if candidate.Before(e.lowerBound) {
			continue
		}
		if candidate.After(e.upperBound) {
			e.done = true
			return time.Time{}, false
		}
		return candidate, true
	}
}

// advance 产出下一个候选日期并推进游标，候选序列单调不减
func (e *Expander) advance() (time.Time, bool) {
	interval := e.rule.EffectiveInterval()
	start := NormalizeDate(e.rule.StartDate)

	switch e.rule.Frequency {
	case FrequencyDaily:
		candidate := start.AddDate(0, 0, e.periodIndex*interval)
		e.periodIndex++
		return candidate, true

	case FrequencyWeekly:
		if len(e.weekOffsets) == 0 {
			return time.Time{}, false
		}
		weekStart := mondayOf(start).AddDate(0, 0, e.periodIndex*7*interval)
		candidate := weekStart.AddDate(0, 0, e.weekOffsets[e.weekdayIdx])
		e.weekdayIdx++
		if e.weekdayIdx == len(e.weekOffsets) {
			e.weekdayIdx = 0
			e.periodIndex++
		}
		// 起始周里早于 StartDate 的星期不产出：首个日期是 StartDate
		// 当天或之后第一个命中的星期
		if candidate.Before(start) {
			return e.advance()
		}
		return candidate, true

	case FrequencyMonthly:
		candidate := addMonthsClamped(start, e.periodIndex*interval)
		e.periodIndex++
		return candidate, true

	case FrequencyYearly:
		candidate := addMonthsClamped(start, e.periodIndex*interval*12)
		e.periodIndex++
		return candidate, true

	default:
		return time.Time{}, false
	}
}

// Expand 一次性展开窗口内的全部日期
func Expand(rule Rule, windowStart, windowEnd time.Time) []time.Time {
	expander := NewExpander(rule, windowStart, windowEnd)

	var dates []time.Time
	for {
		date, ok := expander.Next()
		if !ok {
			return dates
		}
		dates = append(dates, date)
	}
}

// mondayOf 返回所在自然周的周一
func mondayOf(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return t.AddDate(0, 0, -(weekday - 1))
}

// addMonthsClamped 从锚点日期加 months 个月，目标月份不存在锚点日时
// 收敛到该月最后一天（如 1 月 31 日 + 1 月 = 2 月 28/29 日）
func addMonthsClamped(anchor time.Time, months int) time.Time {
	year, month, day := anchor.Date()

	totalMonths := int(month) - 1 + months
	targetYear := year + totalMonths/12
	targetMonth := time.Month(totalMonths%12 + 1)

	if last := lastDayOfMonth(targetYear, targetMonth, anchor.Location()); day > last {
		day = last
	}

	return time.Date(targetYear, targetMonth, day, 0, 0, 0, 0, anchor.Location())
}

func lastDayOfMonth(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
