package db

import (
	"time"

	"gorm.io/gorm"
)

// StreakState 维护每个 (用户, 目标复合键) 的连胜聚合
// Version 在每次写入时自增，条件更新时校验以实现乐观并发
// 目标删除时仅填 ArchivedAt 归档，历史连胜/最佳值必须保留用于报表
type StreakState struct {
	gorm.Model
	UserID             string `gorm:"index;index:idx_streak_unique,unique"`
	PrimaryType        string `gorm:"index:idx_streak_unique,unique"`
	SecondaryType      string `gorm:"index:idx_streak_unique,unique"`
	CurrentStreak      int
	CurrentStreakStart *time.Time
	LastSyncDate       *time.Time
	BestStreakValue    int
	BestStreakStart    *time.Time
	BestStreakEnd      *time.Time
	Version            int
	ArchivedAt         *time.Time
}

// TableName 重写确保唯一索引覆盖完整复合键
func (StreakState) TableName() string {
	return "streak_states"
}

// Key 返回聚合对应的目标复合键
func (s StreakState) Key() GoalKey {
	return NewGoalKey(s.PrimaryType, s.SecondaryType)
}
