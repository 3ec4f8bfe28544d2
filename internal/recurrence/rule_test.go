package recurrence

import (
	"errors"
	"testing"
	"time"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

func TestRuleValidate(t *testing.T) {
	start := date(2024, 1, 1)

	valid := Rule{Frequency: FrequencyDaily, Interval: 1, StartDate: start}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid rule, got %v", err)
	}

	// 未知频率
	if err := (Rule{Frequency: "HOURLY", StartDate: start}).Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for unknown frequency, got %v", err)
	}

	// WEEKLY 缺少 byWeekDay
	if err := (Rule{Frequency: FrequencyWeekly, StartDate: start}).Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for weekly without byWeekDay, got %v", err)
	}

	// 结束日期早于开始日期
	end := date(2023, 12, 31)
	if err := (Rule{Frequency: FrequencyDaily, StartDate: start, EndDate: &end}).Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for end before start, got %v", err)
	}

	// 非法星期标签
	bad := Rule{Frequency: FrequencyWeekly, StartDate: start, ByWeekDay: []Weekday{"XX"}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for unknown weekday, got %v", err)
	}

	// 负 interval
	if err := (Rule{Frequency: FrequencyDaily, Interval: -1, StartDate: start}).Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for negative interval, got %v", err)
	}
}

func TestEffectiveIntervalDefaultsToOne(t *testing.T) {
	rule := Rule{Frequency: FrequencyDaily, StartDate: date(2024, 1, 1)}
	if got := rule.EffectiveInterval(); got != 1 {
		t.Fatalf("expected default interval 1, got %d", got)
	}

	rule.Interval = 3
	if got := rule.EffectiveInterval(); got != 3 {
		t.Fatalf("expected interval 3, got %d", got)
	}
}

func TestCadenceDays(t *testing.T) {
	start := date(2024, 1, 1)

	daily := Rule{Frequency: FrequencyDaily, Interval: 2, StartDate: start}
	if got := daily.CadenceDays(); got != 2 {
		t.Fatalf("expected daily cadence 2, got %d", got)
	}

	// MO/WE/FR：最大间隔是 FR -> 下周 MO 的 3 天
	weekly := Rule{
		Frequency: FrequencyWeekly,
		StartDate: start,
		ByWeekDay: []Weekday{Monday, Wednesday, Friday},
	}
	if got := weekly.CadenceDays(); got != 3 {
		t.Fatalf("expected weekly cadence 3, got %d", got)
	}

	// 单个星期、隔周：回绕间隔 14 天
	biweekly := Rule{
		Frequency: FrequencyWeekly,
		Interval:  2,
		StartDate: start,
		ByWeekDay: []Weekday{Monday},
	}
	if got := biweekly.CadenceDays(); got != 14 {
		t.Fatalf("expected biweekly cadence 14, got %d", got)
	}

	monthly := Rule{Frequency: FrequencyMonthly, StartDate: start}
	if got := monthly.CadenceDays(); got != 31 {
		t.Fatalf("expected monthly cadence 31, got %d", got)
	}
}

func TestParseFrequencyAndWeekdays(t *testing.T) {
	if freq, err := ParseFrequency("weekly"); err != nil || freq != FrequencyWeekly {
		t.Fatalf("expected WEEKLY, got %v %v", freq, err)
	}
	if _, err := ParseFrequency("sometimes"); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}

	days, err := ParseWeekdays([]string{"mo", " WE ", "fr"})
	if err != nil {
		t.Fatalf("ParseWeekdays returned error: %v", err)
	}
	if len(days) != 3 || days[0] != Monday || days[1] != Wednesday || days[2] != Friday {
		t.Fatalf("unexpected weekdays: %v", days)
	}

	if _, err := ParseWeekdays([]string{"ZZ"}); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for bad tag, got %v", err)
	}
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween(date(2024, 1, 1), date(2024, 1, 4)); got != 3 {
		t.Fatalf("expected 3 days, got %d", got)
	}
	if got := DaysBetween(date(2024, 2, 28), date(2024, 3, 1)); got != 2 {
		t.Fatalf("expected 2 days across leap day, got %d", got)
	}
	if !SameDay(date(2024, 5, 1), time.Date(2024, 5, 1, 23, 59, 0, 0, time.Local)) {
		t.Fatal("expected same day")
	}
}
