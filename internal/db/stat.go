package db

import (
	"time"

	"gorm.io/gorm"
)

// StatState 维护每个 (用户, 目标复合键, 指标) 的运行统计
// min <= currentValue <= max 在至少记录过一个值之后恒成立
// DayCount 统计出现过记录的不同天数，单调不减
type StatState struct {
	gorm.Model
	UserID        string `gorm:"index;index:idx_stat_unique,unique"`
	PrimaryType   string `gorm:"index:idx_stat_unique,unique"`
	SecondaryType string `gorm:"index:idx_stat_unique,unique"`
	Metric        string `gorm:"index:idx_stat_unique,unique"`
	CurrentValue  float64
	CurrentDate   *time.Time
	MaxValue      float64
	MaxDate       *time.Time
	MinValue      float64
	MinDate       *time.Time
	DayCount      int
	Version       int
	ArchivedAt    *time.Time
}

// TableName 重写确保唯一索引覆盖完整复合键
func (StatState) TableName() string {
	return "stat_states"
}

// StatDataPoint 是统计的原始数据点
// 唯一索引保证同一天的重复提交幂等，DayCount 依赖它判断是否为新的一天
type StatDataPoint struct {
	gorm.Model
	UserID        string    `gorm:"index;index:idx_stat_point_unique,unique"`
	PrimaryType   string    `gorm:"index:idx_stat_point_unique,unique"`
	SecondaryType string    `gorm:"index:idx_stat_point_unique,unique"`
	Metric        string    `gorm:"index:idx_stat_point_unique,unique"`
	Date          time.Time `gorm:"index:idx_stat_point_unique,unique"`
	Value         float64
}

// TableName 重写确保唯一索引覆盖完整复合键
func (StatDataPoint) TableName() string {
	return "stat_data_points"
}
