package db

import (
	"time"

	"gorm.io/gorm"
)

// 排期实例生命周期状态
const (
	OccurrenceStatusActive = "active"
	OccurrenceStatusEnded  = "ended"
)

// ScheduleOccurrence 是重复规则在某一天的物化实例
// GoalID + Date 采用唯一索引保证同一天只物化一次
// EventID 是外部日历/autopilot 的关联键，取消请求凭它定位实例
// 实例只做状态翻转（active -> ended），从不物理删除
type ScheduleOccurrence struct {
	gorm.Model
	GoalID  uint      `gorm:"index;index:idx_occurrence_unique,unique"`
	Goal    Goal      `gorm:"constraint:OnDelete:CASCADE"`
	Date    time.Time `gorm:"index:idx_occurrence_unique,unique"`
	Status  string    `gorm:"index"`
	EventID string    `gorm:"uniqueIndex"`
	TaskID  string
}

// TableName 重写确保唯一索引作用到 goal_id + date
func (ScheduleOccurrence) TableName() string {
	return "schedule_occurrences"
}
