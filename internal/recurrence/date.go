package recurrence

import "time"

// DaysBetween 返回两个日期间隔的自然天数（later - earlier）
// 先折算到 UTC 零点再相减，避免夏令时导致的 23/25 小时误差
func DaysBetween(earlier, later time.Time) int {
	return int(utcMidnight(later).Sub(utcMidnight(earlier)).Hours() / 24)
}

// SameDay 判断两个时间是否落在同一个自然日
func SameDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 0
}

func utcMidnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
