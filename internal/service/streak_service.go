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

var (
	// ErrOutOfOrderCompletion 在完成事件早于已记录日期时返回，
	// 调用方需要通过 Replay 从历史重算而不是增量更新
	ErrOutOfOrderCompletion = errors.New("completion out of order: replay required")
	// ErrVersionConflict 在乐观并发校验失败且重试仍失败时返回
	ErrVersionConflict = errors.New("aggregate version conflict")
	// ErrCompletionInvalid 在完成事件缺少必填字段时返回
	ErrCompletionInvalid = errors.New("invalid completion event")
)

const dateFormat = "2006-01-02"

// 完成记录来源标记
const (
	CompletionSourceManual    = "manual"
	CompletionSourceReconcile = "reconcile"
	CompletionSourceAutopilot = "autopilot"
)

// StreakService 维护每个 (用户, 目标复合键) 的连胜状态机
// 同键更新经 keyLock 串行化；不同键可并行处理
// 状态是完成历史的纯折叠，乐观并发冲突时重读重算即可恢复
type StreakService struct {
	db     *gorm.DB
	locks  *keyLock
	logger zerolog.Logger
}

// CompletionInput 定义一次完成事件
// CadenceDays 是规则允许的相邻打卡最大间隔，0 按 1（每日）处理
type CompletionInput struct {
	UserID      string
	Key         db.GoalKey
	Date        time.Time
	Completed   bool
	CadenceDays int
	Source      string
}

// NewStreakService 构造 StreakService
func NewStreakService(gdb *gorm.DB) *StreakService {
	return &StreakService{
		db:     gdb,
		locks:  newKeyLock(),
		logger: log.With().Str("component", "streak").Logger(),
	}
}

// RecordCompletion 记录一次完成事件并推进连胜状态
// 同一天重复提交按覆盖处理（从历史重新折叠）；
// 早于 LastSyncDate 的事件在落库后返回 ErrOutOfOrderCompletion，不改动聚合
func (s *StreakService) RecordCompletion(input CompletionInput) (*db.StreakState, error) {
	if err := validateCompletionInput(input); err != nil {
		return nil, err
	}

	date := recurrence.NormalizeDate(input.Date)
	unlock := s.locks.acquire(input.Key.UserScoped(input.UserID))
	defer unlock()

	if err := s.upsertCompletion(input, date); err != nil {
		return nil, err
	}

	state, err := s.loadState(input.UserID, input.Key)
	if err != nil {
		return nil, err
	}

	if state.LastSyncDate != nil {
		if date.Before(recurrence.NormalizeDate(*state.LastSyncDate)) && !recurrence.SameDay(date, *state.LastSyncDate) {
			s.logger.Warn().
				Str("key", input.Key.UserScoped(input.UserID)).
				Time("incoming", date).
				Time("last_sync", *state.LastSyncDate).
				Msg("out-of-order completion, replay required")
			return nil, fmt.Errorf("%w: incoming %s before last sync %s",
				ErrOutOfOrderCompletion, date.Format(dateFormat), state.LastSyncDate.Format(dateFormat))
		}
		if recurrence.SameDay(date, *state.LastSyncDate) {
			// 同日覆盖：增量更新无法撤销上一次折叠，直接从历史重建
			return s.replayLocked(input.UserID, input.Key, input.CadenceDays)
		}
	}

	applyCompletion(state, date, input.Completed, cadenceOrDefault(input.CadenceDays))

	if err := s.saveState(state); err != nil {
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		// 聚合是历史的纯函数，冲突时重算一次即可
		return s.replayLocked(input.UserID, input.Key, input.CadenceDays)
	}

	return state, nil
}

// Replay 丢弃当前聚合并从完成历史全量重建
// 供乱序回填之后的调用方恢复一致状态
func (s *StreakService) Replay(userID string, key db.GoalKey, cadenceDays int) (*db.StreakState, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrCompletionInvalid)
	}

	unlock := s.locks.acquire(key.UserScoped(userID))
	defer unlock()

	return s.replayLocked(userID, key, cadenceDays)
}

// Get 返回当前连胜状态，不存在时返回零值聚合
func (s *StreakService) Get(userID string, key db.GoalKey) (*db.StreakState, error) {
	return s.loadState(userID, key)
}

// Archive 归档聚合（目标删除时调用），历史值保留
func (s *StreakService) Archive(userID string, key db.GoalKey) error {
	now := time.Now()
	if err := s.db.Model(&db.StreakState{}).
		Where("user_id = ? AND primary_type = ? AND secondary_type = ? AND archived_at IS NULL",
			userID, key.Primary, key.Secondary).
		Updates(map[string]any{"archived_at": &now, "version": gorm.Expr("version + 1")}).Error; err != nil {
		return fmt.Errorf("archive streak state: %w", err)
	}
	return nil
}

func (s *StreakService) replayLocked(userID string, key db.GoalKey, cadenceDays int) (*db.StreakState, error) {
	var records []db.CompletionRecord
	if err := s.db.Where("user_id = ? AND primary_type = ? AND secondary_type = ?",
		userID, key.Primary, key.Secondary).
		Order("date ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load completion history: %w", err)
	}

	state, err := s.loadState(userID, key)
	if err != nil {
		return nil, err
	}

	resetState(state)
	cadence := cadenceOrDefault(cadenceDays)
	for _, record := range records {
		applyCompletion(state, recurrence.NormalizeDate(record.Date), record.Completed, cadence)
	}

	if err := s.saveState(state); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("key", key.UserScoped(userID)).
		Int("records", len(records)).
		Int("current_streak", state.CurrentStreak).
		Msg("streak state replayed")

	return state, nil
}

func (s *StreakService) upsertCompletion(input CompletionInput, date time.Time) error {
	record := db.CompletionRecord{
		UserID:        input.UserID,
		PrimaryType:   input.Key.Primary,
		SecondaryType: input.Key.Secondary,
		Date:          date,
		Completed:     input.Completed,
		Source:        strings.TrimSpace(input.Source),
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "primary_type"}, {Name: "secondary_type"}, {Name: "date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"completed", "source", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return fmt.Errorf("upsert completion record: %w", err)
	}

	return nil
}

func (s *StreakService) loadState(userID string, key db.GoalKey) (*db.StreakState, error) {
	var state db.StreakState
	err := s.db.Where("user_id = ? AND primary_type = ? AND secondary_type = ?",
		userID, key.Primary, key.Secondary).First(&state).Error
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load streak state: %w", err)
	}

	return &db.StreakState{
		UserID:        userID,
		PrimaryType:   key.Primary,
		SecondaryType: key.Secondary,
	}, nil
}

// saveState 持久化聚合并自增版本号，条件更新校验旧版本
func (s *StreakService) saveState(state *db.StreakState) error {
	if state.ID == 0 {
		state.Version = 1
		if err := s.db.Create(state).Error; err != nil {
			return fmt.Errorf("create streak state: %w", err)
		}
		return nil
	}

	previous := state.Version
	state.Version = previous + 1

	result := s.db.Model(&db.StreakState{}).
		Where("id = ? AND version = ?", state.ID, previous).
		Updates(map[string]any{
			"current_streak":       state.CurrentStreak,
			"current_streak_start": state.CurrentStreakStart,
			"last_sync_date":       state.LastSyncDate,
			"best_streak_value":    state.BestStreakValue,
			"best_streak_start":    state.BestStreakStart,
			"best_streak_end":      state.BestStreakEnd,
			"version":              state.Version,
		})
	if result.Error != nil {
		return fmt.Errorf("update streak state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	return nil
}

// applyCompletion 将一条按日期升序到达的完成事件折叠进聚合
// 断档（间隔超过节奏）先记断再重新起算；最佳值只增不减
func applyCompletion(state *db.StreakState, date time.Time, completed bool, cadenceDays int) {
	if !completed {
		state.CurrentStreak = 0
		state.CurrentStreakStart = nil
	} else {
		gapped := true
		if state.CurrentStreak > 0 && state.LastSyncDate != nil {
			gapped = recurrence.DaysBetween(*state.LastSyncDate, date) > cadenceDays
		}

		if state.CurrentStreak == 0 || gapped {
			state.CurrentStreak = 1
			start := date
			state.CurrentStreakStart = &start
		} else {
			state.CurrentStreak++
		}

		if state.CurrentStreak > state.BestStreakValue {
			state.BestStreakValue = state.CurrentStreak
			state.BestStreakStart = state.CurrentStreakStart
			end := date
			state.BestStreakEnd = &end
		}
	}

	sync := date
	state.LastSyncDate = &sync
}

func resetState(state *db.StreakState) {
	state.CurrentStreak = 0
	state.CurrentStreakStart = nil
	state.LastSyncDate = nil
	state.BestStreakValue = 0
	state.BestStreakStart = nil
	state.BestStreakEnd = nil
}

func cadenceOrDefault(cadenceDays int) int {
	if cadenceDays < 1 {
		return 1
	}
	return cadenceDays
}

func validateCompletionInput(input CompletionInput) error {
	if strings.TrimSpace(input.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrCompletionInvalid)
	}
	if strings.TrimSpace(input.Key.Primary) == "" {
		return fmt.Errorf("%w: goal key is required", ErrCompletionInvalid)
	}
	if input.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrCompletionInvalid)
	}
	return nil
}
