package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goalsync/internal/db"
	"github.com/goalsync/internal/recurrence"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	// ErrGoalNotFound 在指定目标不存在时返回
	ErrGoalNotFound = errors.New("goal not found")
	// ErrGoalInvalid 在目标缺少必填字段时返回
	ErrGoalInvalid = errors.New("invalid goal input")
)

// GoalService 负责 Goal 数据的增删改查与删除级联
// 删除时终结排期实例、归档连胜与统计聚合，历史值保留用于报表
type GoalService struct {
	db        *gorm.DB
	schedules *ScheduleService
	streaks   *StreakService
	stats     *StatService
	logger    zerolog.Logger
}

// GoalFilter 描述列表过滤条件
type GoalFilter struct {
	UserID      string
	Status      string
	PrimaryType string
}

// GoalInput 定义创建/更新目标时可配置字段
// 规则字段与 recurrence.Rule 一一对应
type GoalInput struct {
	UserID               string
	PrimaryType          string
	SecondaryType        string
	Name                 string
	Description          string
	Status               string
	FrequencyUnit        string
	IntervalCount        int
	ByWeekDay            []string
	StartDate            time.Time
	EndDate              *time.Time
	DayReminderTimeRange []string
	DayReminderTimes     []string
	DeadlineAlarms       []string
	TaskID               string
}

// NewGoalService 构造 GoalService
func NewGoalService(gdb *gorm.DB, schedules *ScheduleService, streaks *StreakService, stats *StatService) *GoalService {
	return &GoalService{
		db:        gdb,
		schedules: schedules,
		streaks:   streaks,
		stats:     stats,
		logger:    log.With().Str("component", "goal").Logger(),
	}
}

// List 返回目标集合，支持基本筛选
func (s *GoalService) List(filter GoalFilter) ([]db.Goal, error) {
	var goals []db.Goal

	query := s.db.Model(&db.Goal{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PrimaryType != "" {
		query = query.Where("primary_type = ?", filter.PrimaryType)
	}

	if err := query.Order("created_at DESC").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	return goals, nil
}

// ListActive 返回全部活跃目标，供后台对账扫描使用
func (s *GoalService) ListActive() ([]db.Goal, error) {
	return s.List(GoalFilter{Status: db.GoalStatusActive})
}

// Get 根据 ID 获取目标
func (s *GoalService) Get(id uint) (*db.Goal, error) {
	var goal db.Goal
	if err := s.db.First(&goal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &goal, nil
}

// Create 新建目标，规则在此处校验，之后的展开假定输入已合法
func (s *GoalService) Create(input GoalInput) (*db.Goal, error) {
	goal, err := goalFromInput(input)
	if err != nil {
		return nil, err
	}

	if err := s.db.Create(goal).Error; err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}

	return goal, nil
}

// Update 更新目标
func (s *GoalService) Update(id uint, input GoalInput) (*db.Goal, error) {
	var existing db.Goal
	if err := s.db.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("find goal: %w", err)
	}

	updated, err := goalFromInput(input)
	if err != nil {
		return nil, err
	}

	updated.Model = existing.Model
	if err := s.db.Save(updated).Error; err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}

	return updated, nil
}

// Deactivate 停用目标并终结其全部 ACTIVE 排期实例，聚合不归档
func (s *GoalService) Deactivate(id uint) (*db.Goal, error) {
	goal, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(goal).Update("status", db.GoalStatusInactive).Error; err != nil {
		return nil, fmt.Errorf("deactivate goal: %w", err)
	}
	goal.Status = db.GoalStatusInactive

	if _, err := s.schedules.RetireAll(goal.ID); err != nil {
		return nil, err
	}

	return goal, nil
}

// Delete 软删目标并级联：终结实例、归档连胜与统计聚合
func (s *GoalService) Delete(id uint) error {
	goal, err := s.Get(id)
	if err != nil {
		return err
	}

	retired, err := s.schedules.RetireAll(goal.ID)
	if err != nil {
		return err
	}

	key := goal.Key()
	if err := s.streaks.Archive(goal.UserID, key); err != nil {
		return err
	}
	if err := s.stats.Archive(goal.UserID, key); err != nil {
		return err
	}

	if err := s.db.Delete(&db.Goal{}, id).Error; err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}

	s.logger.Info().
		Uint("goal_id", id).
		Int64("retired", retired).
		Str("key", key.UserScoped(goal.UserID)).
		Msg("goal deleted, aggregates archived")

	return nil
}

func goalFromInput(input GoalInput) (*db.Goal, error) {
	frequency, err := recurrence.ParseFrequency(input.FrequencyUnit)
	if err != nil {
		return nil, err
	}

	weekdays, err := recurrence.ParseWeekdays(input.ByWeekDay)
	if err != nil {
		return nil, err
	}

	rule := recurrence.Rule{
		Frequency:            frequency,
		Interval:             input.IntervalCount,
		ByWeekDay:            weekdays,
		StartDate:            input.StartDate,
		EndDate:              input.EndDate,
		DayReminderTimeRange: input.DayReminderTimeRange,
		DayReminderTimes:     input.DayReminderTimes,
		DeadlineAlarms:       input.DeadlineAlarms,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrGoalInvalid)
	}
	if strings.TrimSpace(input.PrimaryType) == "" {
		return nil, fmt.Errorf("%w: primary goal type is required", ErrGoalInvalid)
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: goal name is required", ErrGoalInvalid)
	}

	key := db.NewGoalKey(input.PrimaryType, input.SecondaryType)

	weekdayTags := make([]string, 0, len(weekdays))
	for _, day := range weekdays {
		weekdayTags = append(weekdayTags, string(day))
	}

	return &db.Goal{
		UserID:               strings.TrimSpace(input.UserID),
		PrimaryType:          key.Primary,
		SecondaryType:        key.Secondary,
		Name:                 strings.TrimSpace(input.Name),
		Description:          strings.TrimSpace(input.Description),
		Status:               normalizeGoalStatus(input.Status),
		FrequencyUnit:        string(frequency),
		IntervalCount:        rule.EffectiveInterval(),
		ByWeekDay:            db.JoinList(weekdayTags),
		StartDate:            recurrence.NormalizeDate(input.StartDate),
		EndDate:              normalizeOptionalDate(input.EndDate),
		DayReminderTimeRange: db.JoinList(input.DayReminderTimeRange),
		DayReminderTimes:     db.JoinList(input.DayReminderTimes),
		DeadlineAlarms:       db.JoinList(input.DeadlineAlarms),
		TaskID:               strings.TrimSpace(input.TaskID),
	}, nil
}

func normalizeGoalStatus(status string) string {
	status = strings.TrimSpace(strings.ToLower(status))
	if status != db.GoalStatusInactive {
		return db.GoalStatusActive
	}
	return db.GoalStatusInactive
}

func normalizeOptionalDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	normalized := recurrence.NormalizeDate(*t)
	return &normalized
}
