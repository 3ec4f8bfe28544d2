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
	"gorm.io/gorm/clause"
)

// ErrStatInvalid 在统计数据点缺少必填字段时返回
var ErrStatInvalid = errors.New("invalid stat data point")

// StatService 维护每个 (用户, 目标复合键, 指标) 的运行统计
// 原始数据点按 (键, 日期) 唯一落库，DayCount 依赖它实现同日幂等
type StatService struct {
	db     *gorm.DB
	locks  *keyLock
	logger zerolog.Logger
}

// StatInput 定义一次统计数据点提交
type StatInput struct {
	UserID string
	Key    db.GoalKey
	Metric string
	Value  float64
	Date   time.Time
}

// NewStatService 构造 StatService
func NewStatService(gdb *gorm.DB) *StatService {
	return &StatService{
		db:     gdb,
		locks:  newKeyLock(),
		logger: log.With().Str("component", "stat").Logger(),
	}
}

// Record 记录一个数据点并更新运行统计
// max/maxDate 仅在严格更大时更新（平局保留更早日期），min 对称；
// 同一 (日期, 值) 重复提交不会使 DayCount 二次增长
func (s *StatService) Record(input StatInput) (*db.StatState, error) {
	if err := validateStatInput(input); err != nil {
		return nil, err
	}

	metric := strings.TrimSpace(input.Metric)
	date := recurrence.NormalizeDate(input.Date)

	unlock := s.locks.acquire(input.Key.UserScoped(input.UserID) + "#" + metric)
	defer unlock()

	newDay, err := s.upsertDataPoint(input, metric, date)
	if err != nil {
		return nil, err
	}

	state, err := s.loadState(input.UserID, input.Key, metric)
	if err != nil {
		return nil, err
	}

	applyDataPoint(state, input.Value, date, newDay)

	if err := s.saveState(state); err != nil {
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		// 冲突时重读再套用一次，数据点已幂等落库；
		// DayCount 直接按数据点表重算，避免与并发写入方互相覆盖
		state, err = s.loadState(input.UserID, input.Key, metric)
		if err != nil {
			return nil, err
		}
		applyDataPoint(state, input.Value, date, false)
		days, err := s.countDays(input.UserID, input.Key, metric)
		if err != nil {
			return nil, err
		}
		state.DayCount = days
		if err := s.saveState(state); err != nil {
			return nil, err
		}
	}

	return state, nil
}

// Get 返回当前统计状态，不存在时返回零值聚合
func (s *StatService) Get(userID string, key db.GoalKey, metric string) (*db.StatState, error) {
	return s.loadState(userID, key, strings.TrimSpace(metric))
}

// Archive 归档该键下全部指标的统计（目标删除时调用），历史值保留
func (s *StatService) Archive(userID string, key db.GoalKey) error {
	now := time.Now()
	if err := s.db.Model(&db.StatState{}).
		Where("user_id = ? AND primary_type = ? AND secondary_type = ? AND archived_at IS NULL",
			userID, key.Primary, key.Secondary).
		Updates(map[string]any{"archived_at": &now, "version": gorm.Expr("version + 1")}).Error; err != nil {
		return fmt.Errorf("archive stat state: %w", err)
	}
	return nil
}

// upsertDataPoint 落库原始数据点，返回该日期是否首次出现
func (s *StatService) upsertDataPoint(input StatInput, metric string, date time.Time) (bool, error) {
	var count int64
	if err := s.db.Model(&db.StatDataPoint{}).
		Where("user_id = ? AND primary_type = ? AND secondary_type = ? AND metric = ? AND date = ?",
			input.UserID, input.Key.Primary, input.Key.Secondary, metric, date).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check stat data point: %w", err)
	}

	point := db.StatDataPoint{
		UserID:        input.UserID,
		PrimaryType:   input.Key.Primary,
		SecondaryType: input.Key.Secondary,
		Metric:        metric,
		Date:          date,
		Value:         input.Value,
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "primary_type"}, {Name: "secondary_type"},
			{Name: "metric"}, {Name: "date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&point).Error; err != nil {
		return false, fmt.Errorf("upsert stat data point: %w", err)
	}

	return count == 0, nil
}

// countDays 重算出现过数据点的不同天数
func (s *StatService) countDays(userID string, key db.GoalKey, metric string) (int, error) {
	var count int64
	if err := s.db.Model(&db.StatDataPoint{}).
		Where("user_id = ? AND primary_type = ? AND secondary_type = ? AND metric = ?",
			userID, key.Primary, key.Secondary, metric).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count stat days: %w", err)
	}
	return int(count), nil
}

func (s *StatService) loadState(userID string, key db.GoalKey, metric string) (*db.StatState, error) {
	var state db.StatState
	err := s.db.Where("user_id = ? AND primary_type = ? AND secondary_type = ? AND metric = ?",
		userID, key.Primary, key.Secondary, metric).First(&state).Error
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load stat state: %w", err)
	}

	return &db.StatState{
		UserID:        userID,
		PrimaryType:   key.Primary,
		SecondaryType: key.Secondary,
		Metric:        metric,
	}, nil
}

func (s *StatService) saveState(state *db.StatState) error {
	if state.ID == 0 {
		state.Version = 1
		if err := s.db.Create(state).Error; err != nil {
			return fmt.Errorf("create stat state: %w", err)
		}
		return nil
	}

	previous := state.Version
	state.Version = previous + 1

	result := s.db.Model(&db.StatState{}).
		Where("id = ? AND version = ?", state.ID, previous).
		Updates(map[string]any{
			"current_value": state.CurrentValue,
			"current_date":  state.CurrentDate,
			"max_value":     state.MaxValue,
			"max_date":      state.MaxDate,
			"min_value":     state.MinValue,
			"min_date":      state.MinDate,
			"day_count":     state.DayCount,
			"version":       state.Version,
		})
	if result.Error != nil {
		return fmt.Errorf("update stat state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	return nil
}

// applyDataPoint 是纯的运行聚合更新，首个数据点同时初始化三个极值
func applyDataPoint(state *db.StatState, value float64, date time.Time, newDay bool) {
	first := state.CurrentDate == nil && state.DayCount == 0

	state.CurrentValue = value
	current := date
	state.CurrentDate = &current

	if first || value > state.MaxValue {
		state.MaxValue = value
		maxDate := date
		state.MaxDate = &maxDate
	}
	if first || value < state.MinValue {
		state.MinValue = value
		minDate := date
		state.MinDate = &minDate
	}

	if first || newDay {
		state.DayCount++
	}
}

func validateStatInput(input StatInput) error {
	if strings.TrimSpace(input.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrStatInvalid)
	}
	if strings.TrimSpace(input.Key.Primary) == "" {
		return fmt.Errorf("%w: goal key is required", ErrStatInvalid)
	}
	if strings.TrimSpace(input.Metric) == "" {
		return fmt.Errorf("%w: metric is required", ErrStatInvalid)
	}
	if input.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrStatInvalid)
	}
	return nil
}
