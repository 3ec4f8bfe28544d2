package service

import (
	"errors"
	"testing"

	"github.com/goalsync/internal/db"
)

func recordStat(t *testing.T, svc *StatService, key db.GoalKey, metric string, day int, value float64) *db.StatState {
	t.Helper()
	state, err := svc.Record(StatInput{
		UserID: "user-1",
		Key:    key,
		Metric: metric,
		Value:  value,
		Date:   testDate(day),
	})
	if err != nil {
		t.Fatalf("Record(day %d, value %v) returned error: %v", day, value, err)
	}
	return state
}

func TestStatRunningExtremes(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewStatService(db.DB)
	key := db.NewGoalKey("exercise", "running")

	recordStat(t, svc, key, "distance", 1, 5)
	recordStat(t, svc, key, "distance", 2, 8)
	state := recordStat(t, svc, key, "distance", 3, 3)

	if state.CurrentValue != 3 {
		t.Fatalf("expected current 3, got %v", state.CurrentValue)
	}
	if state.MaxValue != 8 || state.MaxDate == nil || !state.MaxDate.Equal(testDate(2)) {
		t.Fatalf("unexpected max: %v at %v", state.MaxValue, state.MaxDate)
	}
	if state.MinValue != 3 || state.MinDate == nil || !state.MinDate.Equal(testDate(3)) {
		t.Fatalf("unexpected min: %v at %v", state.MinValue, state.MinDate)
	}
	if state.DayCount != 3 {
		t.Fatalf("expected day count 3, got %d", state.DayCount)
	}

	// 不变量：min <= current <= max
	if state.MinValue > state.CurrentValue || state.CurrentValue > state.MaxValue {
		t.Fatalf("extremes out of order: min=%v current=%v max=%v", state.MinValue, state.CurrentValue, state.MaxValue)
	}
}

func TestStatTieKeepsEarlierDate(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewStatService(db.DB)
	key := db.NewGoalKey("exercise", "")

	recordStat(t, svc, key, "weight", 1, 70)
	// 相同的极值：日期保留首次达到的那天
	state := recordStat(t, svc, key, "weight", 2, 70)

	if state.MaxDate == nil || !state.MaxDate.Equal(testDate(1)) {
		t.Fatalf("expected max date kept at day 1, got %v", state.MaxDate)
	}
	if state.MinDate == nil || !state.MinDate.Equal(testDate(1)) {
		t.Fatalf("expected min date kept at day 1, got %v", state.MinDate)
	}
	if state.CurrentDate == nil || !state.CurrentDate.Equal(testDate(2)) {
		t.Fatalf("expected current date at day 2, got %v", state.CurrentDate)
	}
}

func TestStatSameDayResubmissionIdempotentDayCount(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewStatService(db.DB)
	key := db.NewGoalKey("exercise", "")

	recordStat(t, svc, key, "pushups", 1, 20)
	state := recordStat(t, svc, key, "pushups", 1, 25)

	if state.DayCount != 1 {
		t.Fatalf("expected day count 1 after same-day resubmission, got %d", state.DayCount)
	}
	if state.CurrentValue != 25 {
		t.Fatalf("expected current overwritten to 25, got %v", state.CurrentValue)
	}
	if state.MaxValue != 25 {
		t.Fatalf("expected max 25, got %v", state.MaxValue)
	}

	var points int64
	if err := db.DB.Model(&db.StatDataPoint{}).
		Where("metric = ?", "pushups").Count(&points).Error; err != nil {
		t.Fatalf("count data points returned error: %v", err)
	}
	if points != 1 {
		t.Fatalf("expected single data point row, got %d", points)
	}
}

func TestStatMetricsIsolated(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewStatService(db.DB)
	key := db.NewGoalKey("exercise", "")

	recordStat(t, svc, key, "distance", 1, 5)
	recordStat(t, svc, key, "weight", 1, 70)

	distance, err := svc.Get("user-1", key, "distance")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if distance.CurrentValue != 5 {
		t.Fatalf("expected distance 5, got %v", distance.CurrentValue)
	}

	weight, err := svc.Get("user-1", key, "weight")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if weight.CurrentValue != 70 {
		t.Fatalf("expected weight 70, got %v", weight.CurrentValue)
	}
}

func TestStatValidationAndArchive(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewStatService(db.DB)
	key := db.NewGoalKey("exercise", "")

	_, err := svc.Record(StatInput{UserID: "user-1", Key: key, Date: testDate(1), Value: 1})
	if !errors.Is(err, ErrStatInvalid) {
		t.Fatalf("expected ErrStatInvalid for missing metric, got %v", err)
	}

	recordStat(t, svc, key, "distance", 1, 5)
	if err := svc.Archive("user-1", key); err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}

	state, err := svc.Get("user-1", key, "distance")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if state.ArchivedAt == nil {
		t.Fatal("expected archived_at to be set")
	}
	if state.CurrentValue != 5 {
		t.Fatalf("expected historical value preserved, got %v", state.CurrentValue)
	}
}
