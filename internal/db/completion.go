package db

import (
	"time"

	"gorm.io/gorm"
)

// CompletionRecord 记录某用户某目标在某一天的完成情况
// (user_id, primary_type, secondary_type, date) 唯一，重复提交覆盖而非累加
// Source 标记来源（manual/reconcile/autopilot），便于审计漏打信号
type CompletionRecord struct {
	gorm.Model
	UserID        string    `gorm:"index;index:idx_completion_unique,unique"`
	PrimaryType   string    `gorm:"index:idx_completion_unique,unique"`
	SecondaryType string    `gorm:"index:idx_completion_unique,unique"`
	Date          time.Time `gorm:"index:idx_completion_unique,unique"`
	Completed     bool
	Source        string
}

// TableName 重写确保唯一索引覆盖完整复合键
func (CompletionRecord) TableName() string {
	return "completion_records"
}

// Key 返回记录对应的目标复合键
func (c CompletionRecord) Key() GoalKey {
	return NewGoalKey(c.PrimaryType, c.SecondaryType)
}
