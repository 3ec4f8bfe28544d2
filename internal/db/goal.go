package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// 目标生命周期状态
const (
	GoalStatusActive   = "active"
	GoalStatusInactive = "inactive"
)

// GoalKey 以 (主目标类型, 子目标类型) 复合键标识一个被追踪的目标
// 作为不可变值类型在 map/锁键中使用，避免两个松散字符串在调用链里传递
type GoalKey struct {
	Primary   string
	Secondary string
}

// NewGoalKey 构造复合键，空的子类型记为 "null"，与日历侧的编码保持一致
func NewGoalKey(primary, secondary string) GoalKey {
	primary = strings.TrimSpace(primary)
	secondary = strings.TrimSpace(secondary)
	if secondary == "" {
		secondary = "null"
	}
	return GoalKey{Primary: primary, Secondary: secondary}
}

// String 输出 "primary#secondary" 编码
func (k GoalKey) String() string {
	return fmt.Sprintf("%s#%s", k.Primary, k.Secondary)
}

// UserScoped 输出 "userId#primary#secondary"，用于日志与去重键
func (k GoalKey) UserScoped(userID string) string {
	return fmt.Sprintf("%s#%s#%s", userID, k.Primary, k.Secondary)
}

// Goal 定义了带重复规则的目标/待办
// 重复规则字段内嵌存储：FrequencyUnit/IntervalCount 描述步长，
// ByWeekDay 以逗号分隔的两位字母标签存储（仅 WEEKLY 有意义）
// DayReminderTimes/DayReminderTimeRange/DeadlineAlarms 为透传给提醒方的
// 有序字符串列表，同样以逗号分隔存储
// TaskID 关联发起该规则的外部待办，可为空
type Goal struct {
	gorm.Model
	UserID               string `gorm:"index;index:idx_goal_user_key"`
	PrimaryType          string `gorm:"index:idx_goal_user_key"`
	SecondaryType        string `gorm:"index:idx_goal_user_key"`
	Name                 string
	Description          string
	Status               string
	FrequencyUnit        string
	IntervalCount        int
	ByWeekDay            string
	StartDate            time.Time
	EndDate              *time.Time
	DayReminderTimeRange string
	DayReminderTimes     string
	DeadlineAlarms       string
	TaskID               string
}

// Key 返回目标的复合键
func (g Goal) Key() GoalKey {
	return NewGoalKey(g.PrimaryType, g.SecondaryType)
}

// SplitList 拆开逗号分隔的列表字段，保持原有顺序
func SplitList(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// JoinList 将有序列表编码回逗号分隔存储
func JoinList(items []string) string {
	trimmed := make([]string, 0, len(items))
	for _, item := range items {
		if value := strings.TrimSpace(item); value != "" {
			trimmed = append(trimmed, value)
		}
	}
	return strings.Join(trimmed, ",")
}
