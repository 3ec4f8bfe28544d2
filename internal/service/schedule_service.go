package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/goalsync/internal/db"
	"github.com/goalsync/internal/recurrence"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ScheduleService 负责把重复规则对账成具体的排期实例
// 创建缺失、终结过期、并把外部取消转换成与自然漏打相同的连胜信号
type ScheduleService struct {
	db      *gorm.DB
	streaks *StreakService
	logger  zerolog.Logger
}

// ReconcileResult 汇总一次对账的变更数量
type ReconcileResult struct {
	Created int
	Retired int
	Missed  int
}

// CancelResult 描述一次外部取消的处理结果
// 未找到实例不是错误：幂等删除语义
type CancelResult struct {
	Found        bool
	AlreadyEnded bool
	MissRecorded bool
}

// NewScheduleService 构造 ScheduleService
func NewScheduleService(gdb *gorm.DB, streaks *StreakService) *ScheduleService {
	return &ScheduleService{
		db:      gdb,
		streaks: streaks,
		logger:  log.With().Str("component", "schedule").Logger(),
	}
}

// Reconcile 对账单个目标：展开 [today, windowEnd] 内的日期，
// 补齐未物化的实例；过期且从未完成的 ACTIVE 实例转为 ENDED 并记一次漏打
func (s *ScheduleService) Reconcile(goal *db.Goal, today, windowEnd time.Time) (ReconcileResult, error) {
	var result ReconcileResult

	if goal == nil {
		return result, fmt.Errorf("goal is required")
	}

	rule, err := RuleFromGoal(goal)
	if err != nil {
		return result, err
	}

	today = recurrence.NormalizeDate(today)

	// 按日期升序遍历，保证漏打信号按非递减顺序进入连胜状态机
	var existing []db.ScheduleOccurrence
	if err := s.db.Where("goal_id = ?", goal.ID).Order("date ASC").Find(&existing).Error; err != nil {
		return result, fmt.Errorf("list occurrences: %w", err)
	}

	// 唯一索引覆盖所有状态的实例，已终结的日期不再重新物化
	materialized := make(map[string]struct{}, len(existing))
	for _, occurrence := range existing {
		materialized[occurrence.Date.Format(dateFormat)] = struct{}{}
	}

	for _, date := range recurrence.Expand(rule, today, windowEnd) {
		if _, ok := materialized[date.Format(dateFormat)]; ok {
			continue
		}

		occurrence := db.ScheduleOccurrence{
			GoalID:  goal.ID,
			Date:    date,
			Status:  db.OccurrenceStatusActive,
			EventID: uuid.NewString(),
			TaskID:  goal.TaskID,
		}
		if err := s.db.Create(&occurrence).Error; err != nil {
			return result, fmt.Errorf("create occurrence: %w", err)
		}
		result.Created++
	}

	cadence := rule.CadenceDays()
	for i := range existing {
		occurrence := &existing[i]
		if occurrence.Status != db.OccurrenceStatusActive {
			continue
		}
		if !recurrence.NormalizeDate(occurrence.Date).Before(today) {
			continue
		}

		completed, err := s.hasCompletion(goal, occurrence.Date)
		if err != nil {
			return result, err
		}

		if err := s.retireOccurrence(occurrence); err != nil {
			return result, err
		}
		result.Retired++

		if completed {
			continue
		}

		// 过期未完成是漏打而不是错误，按 completed=false 进入连胜路径
		if _, err := s.streaks.RecordCompletion(CompletionInput{
			UserID:      goal.UserID,
			Key:         goal.Key(),
			Date:        occurrence.Date,
			Completed:   false,
			CadenceDays: cadence,
			Source:      CompletionSourceReconcile,
		}); err != nil && !errors.Is(err, ErrOutOfOrderCompletion) {
			return result, err
		}
		result.Missed++
	}

	s.logger.Info().
		Uint("goal_id", goal.ID).
		Int("created", result.Created).
		Int("retired", result.Retired).
		Int("missed", result.Missed).
		Msg("schedule reconciled")

	return result, nil
}

// ApplyExternalCancellation 处理 autopilot 发起的取消
// 未知 eventId 与重复取消都按成功处理；漏打信号只在实例日期
// 不晚于今天且没有独立完成记录时发出一次
func (s *ScheduleService) ApplyExternalCancellation(eventID string, today time.Time) (CancelResult, error) {
	var result CancelResult

	var occurrence db.ScheduleOccurrence
	err := s.db.Preload("Goal").Where("event_id = ?", eventID).First(&occurrence).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Debug().Str("event_id", eventID).Msg("cancellation for unknown event, noop")
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("find occurrence by event id: %w", err)
	}

	result.Found = true
	if occurrence.Status == db.OccurrenceStatusEnded {
		result.AlreadyEnded = true
		return result, nil
	}

	if err := s.retireOccurrence(&occurrence); err != nil {
		return result, err
	}

	today = recurrence.NormalizeDate(today)
	if recurrence.NormalizeDate(occurrence.Date).After(today) {
		return result, nil
	}

	completed, err := s.hasCompletion(&occurrence.Goal, occurrence.Date)
	if err != nil {
		return result, err
	}
	if completed {
		return result, nil
	}

	rule, err := RuleFromGoal(&occurrence.Goal)
	cadence := 1
	if err == nil {
		cadence = rule.CadenceDays()
	}

	if _, err := s.streaks.RecordCompletion(CompletionInput{
		UserID:      occurrence.Goal.UserID,
		Key:         occurrence.Goal.Key(),
		Date:        occurrence.Date,
		Completed:   false,
		CadenceDays: cadence,
		Source:      CompletionSourceAutopilot,
	}); err != nil && !errors.Is(err, ErrOutOfOrderCompletion) {
		return result, err
	}
	result.MissRecorded = true

	s.logger.Info().
		Str("event_id", eventID).
		Uint("goal_id", occurrence.GoalID).
		Time("date", occurrence.Date).
		Msg("external cancellation applied")

	return result, nil
}

// ListOccurrences 返回目标在区间内的排期实例
func (s *ScheduleService) ListOccurrences(goalID uint, start, end time.Time) ([]db.ScheduleOccurrence, error) {
	var occurrences []db.ScheduleOccurrence
	if err := s.db.Where("goal_id = ?", goalID).
		Where("date BETWEEN ? AND ?", recurrence.NormalizeDate(start), recurrence.NormalizeDate(end)).
		Order("date ASC").
		Find(&occurrences).Error; err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	return occurrences, nil
}

// RetireAll 终结目标的全部 ACTIVE 实例（目标删除级联用），不产生漏打
func (s *ScheduleService) RetireAll(goalID uint) (int64, error) {
	result := s.db.Model(&db.ScheduleOccurrence{}).
		Where("goal_id = ? AND status = ?", goalID, db.OccurrenceStatusActive).
		Update("status", db.OccurrenceStatusEnded)
	if result.Error != nil {
		return 0, fmt.Errorf("retire occurrences: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *ScheduleService) retireOccurrence(occurrence *db.ScheduleOccurrence) error {
	if err := s.db.Model(occurrence).Update("status", db.OccurrenceStatusEnded).Error; err != nil {
		return fmt.Errorf("retire occurrence: %w", err)
	}
	occurrence.Status = db.OccurrenceStatusEnded
	return nil
}

func (s *ScheduleService) hasCompletion(goal *db.Goal, date time.Time) (bool, error) {
	key := goal.Key()

	var count int64
	if err := s.db.Model(&db.CompletionRecord{}).
		Where("user_id = ? AND primary_type = ? AND secondary_type = ? AND date = ? AND completed = ?",
			goal.UserID, key.Primary, key.Secondary, recurrence.NormalizeDate(date), true).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check completion record: %w", err)
	}

	return count > 0, nil
}

// RuleFromGoal 把内嵌在目标上的规则列还原成 recurrence.Rule
func RuleFromGoal(goal *db.Goal) (recurrence.Rule, error) {
	frequency, err := recurrence.ParseFrequency(goal.FrequencyUnit)
	if err != nil {
		return recurrence.Rule{}, err
	}

	weekdays, err := recurrence.ParseWeekdays(db.SplitList(goal.ByWeekDay))
	if err != nil {
		return recurrence.Rule{}, err
	}

	rule := recurrence.Rule{
		Frequency:            frequency,
		Interval:             goal.IntervalCount,
		ByWeekDay:            weekdays,
		StartDate:            goal.StartDate,
		EndDate:              goal.EndDate,
		DayReminderTimeRange: db.SplitList(goal.DayReminderTimeRange),
		DayReminderTimes:     db.SplitList(goal.DayReminderTimes),
		DeadlineAlarms:       db.SplitList(goal.DeadlineAlarms),
	}

	if err := rule.Validate(); err != nil {
		return recurrence.Rule{}, err
	}

	return rule, nil
}
