package service

import (
	"errors"
	"testing"

	"github.com/goalsync/internal/db"
	"github.com/goalsync/internal/recurrence"
)

func TestGoalCreateNormalizesRule(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	goals, _, _, _ := newTestServices()

	goal, err := goals.Create(GoalInput{
		UserID:        "user-1",
		PrimaryType:   "exercise",
		SecondaryType: "",
		Name:          "力量训练",
		FrequencyUnit: "weekly",
		ByWeekDay:     []string{"mo", "we", "fr"},
		StartDate:     testDate(1),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if goal.ID == 0 {
		t.Fatal("expected goal to have ID")
	}
	if goal.SecondaryType != "null" {
		t.Fatalf("expected empty secondary type encoded as null, got %q", goal.SecondaryType)
	}
	if goal.ByWeekDay != "MO,WE,FR" {
		t.Fatalf("expected normalized weekday tags, got %q", goal.ByWeekDay)
	}
	if goal.IntervalCount != 1 {
		t.Fatalf("expected default interval 1, got %d", goal.IntervalCount)
	}
	if goal.Status != db.GoalStatusActive {
		t.Fatalf("expected default status active, got %s", goal.Status)
	}

	key := goal.Key()
	if key.String() != "exercise#null" {
		t.Fatalf("unexpected key encoding: %s", key.String())
	}
	if key.UserScoped("user-1") != "user-1#exercise#null" {
		t.Fatalf("unexpected user-scoped key: %s", key.UserScoped("user-1"))
	}
}

func TestGoalCreateValidation(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	goals, _, _, _ := newTestServices()

	// 规则非法
	_, err := goals.Create(GoalInput{
		UserID:        "user-1",
		PrimaryType:   "exercise",
		Name:          "测试",
		FrequencyUnit: "weekly",
		StartDate:     testDate(1),
	})
	if !errors.Is(err, recurrence.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for weekly without weekdays, got %v", err)
	}

	// 缺少必填字段
	_, err = goals.Create(GoalInput{
		UserID:        "user-1",
		PrimaryType:   "exercise",
		FrequencyUnit: "daily",
		StartDate:     testDate(1),
	})
	if !errors.Is(err, ErrGoalInvalid) {
		t.Fatalf("expected ErrGoalInvalid for missing name, got %v", err)
	}
}

func TestGoalUpdatePreservesIdentity(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	goals, _, _, _ := newTestServices()
	goal := createDailyGoal(t)

	updated, err := goals.Update(goal.ID, GoalInput{
		UserID:        "user-1",
		PrimaryType:   "exercise",
		SecondaryType: "running",
		Name:          "夜跑",
		FrequencyUnit: "daily",
		IntervalCount: 2,
		StartDate:     testDate(1),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.ID != goal.ID {
		t.Fatalf("expected same ID, got %d vs %d", updated.ID, goal.ID)
	}
	if updated.Name != "夜跑" || updated.IntervalCount != 2 {
		t.Fatalf("unexpected updated goal: %+v", updated)
	}

	if _, err := goals.Update(9999, GoalInput{}); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound, got %v", err)
	}
}

func TestGoalDeactivateRetiresOccurrences(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	goals, schedules, _, _ := newTestServices()
	goal := createDailyGoal(t)

	if _, err := schedules.Reconcile(goal, testDate(1), testDate(3)); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	deactivated, err := goals.Deactivate(goal.ID)
	if err != nil {
		t.Fatalf("Deactivate returned error: %v", err)
	}
	if deactivated.Status != db.GoalStatusInactive {
		t.Fatalf("expected inactive status, got %s", deactivated.Status)
	}

	occurrences, err := schedules.ListOccurrences(goal.ID, testDate(1), testDate(3))
	if err != nil {
		t.Fatalf("ListOccurrences returned error: %v", err)
	}
	for _, occurrence := range occurrences {
		if occurrence.Status != db.OccurrenceStatusEnded {
			t.Fatalf("expected ended occurrence, got %s", occurrence.Status)
		}
	}

	// 停用不产生漏打
	var misses int64
	if err := db.DB.Model(&db.CompletionRecord{}).Where("completed = ?", false).Count(&misses).Error; err != nil {
		t.Fatalf("count misses returned error: %v", err)
	}
	if misses != 0 {
		t.Fatalf("expected no misses on deactivate, got %d", misses)
	}
}

func TestGoalDeleteArchivesAggregates(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	goals, schedules, streaks, stats := newTestServices()
	goal := createDailyGoal(t)

	if _, err := schedules.Reconcile(goal, testDate(1), testDate(2)); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if _, err := streaks.RecordCompletion(CompletionInput{
		UserID:      goal.UserID,
		Key:         goal.Key(),
		Date:        testDate(1),
		Completed:   true,
		CadenceDays: 1,
		Source:      CompletionSourceManual,
	}); err != nil {
		t.Fatalf("RecordCompletion returned error: %v", err)
	}
	if _, err := stats.Record(StatInput{
		UserID: goal.UserID,
		Key:    goal.Key(),
		Metric: "distance",
		Value:  5,
		Date:   testDate(1),
	}); err != nil {
		t.Fatalf("Record stat returned error: %v", err)
	}

	if err := goals.Delete(goal.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if _, err := goals.Get(goal.ID); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound after delete, got %v", err)
	}

	// 聚合归档但历史值保留
	streak, err := streaks.Get(goal.UserID, goal.Key())
	if err != nil {
		t.Fatalf("Get streak returned error: %v", err)
	}
	if streak.ArchivedAt == nil {
		t.Fatal("expected streak state archived")
	}
	if streak.CurrentStreak != 1 {
		t.Fatalf("expected streak value preserved, got %d", streak.CurrentStreak)
	}

	stat, err := stats.Get(goal.UserID, goal.Key(), "distance")
	if err != nil {
		t.Fatalf("Get stat returned error: %v", err)
	}
	if stat.ArchivedAt == nil {
		t.Fatal("expected stat state archived")
	}
	if stat.CurrentValue != 5 {
		t.Fatalf("expected stat value preserved, got %v", stat.CurrentValue)
	}
}

func TestGoalListFilters(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	goals, _, _, _ := newTestServices()
	createDailyGoal(t)

	if _, err := goals.Create(GoalInput{
		UserID:        "user-2",
		PrimaryType:   "reading",
		Name:          "读书",
		FrequencyUnit: "daily",
		StartDate:     testDate(1),
	}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	all, err := goals.List(GoalFilter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 goals, got %d", len(all))
	}

	mine, err := goals.List(GoalFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(mine) != 1 || mine[0].UserID != "user-1" {
		t.Fatalf("unexpected filtered goals: %+v", mine)
	}

	active, err := goals.ListActive()
	if err != nil {
		t.Fatalf("ListActive returned error: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active goals, got %d", len(active))
	}
}
