package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goalsync/internal/db"
	"github.com/goalsync/internal/recurrence"
	"github.com/goalsync/internal/service"
)

const defaultReconcileWindowDays = 30

type goalPayload struct {
	UserID               string   `json:"user_id"`
	PrimaryType          string   `json:"primary_type"`
	SecondaryType        string   `json:"secondary_type"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	Status               string   `json:"status"`
	Frequency            string   `json:"frequency"`
	Interval             int      `json:"interval"`
	ByWeekDay            []string `json:"by_week_day"`
	StartDate            string   `json:"start_date"`
	EndDate              string   `json:"end_date"`
	DayReminderTimeRange []string `json:"day_reminder_time_range"`
	DayReminderTimes     []string `json:"day_reminder_times"`
	DeadlineAlarms       []string `json:"deadline_alarms"`
	TaskID               string   `json:"task_id"`
}

// ListGoals 返回目标列表 JSON
func (a *API) ListGoals(c *gin.Context) {
	filter := service.GoalFilter{
		UserID:      c.Query("user_id"),
		Status:      c.Query("status"),
		PrimaryType: c.Query("primary_type"),
	}

	goals, err := a.goals.List(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取目标列表失败")
		return
	}

	items := make([]gin.H, 0, len(goals))
	for _, goal := range goals {
		items = append(items, goalToPayload(goal))
	}

	c.JSON(http.StatusOK, gin.H{"goals": items})
}

// GetGoal 返回单个目标详情
func (a *API) GetGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	goal, err := a.goals.Get(id)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// CreateGoal 创建目标
func (a *API) CreateGoal(c *gin.Context) {
	input, ok := a.parseGoalInput(c)
	if !ok {
		return
	}

	goal, err := a.goals.Create(input)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// UpdateGoal 更新目标
func (a *API) UpdateGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	input, ok := a.parseGoalInput(c)
	if !ok {
		return
	}

	goal, err := a.goals.Update(id, input)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// DeactivateGoal 停用目标并终结其排期实例
func (a *API) DeactivateGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	goal, err := a.goals.Deactivate(id)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// DeleteGoal 软删目标并级联归档聚合
func (a *API) DeleteGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	if err := a.goals.Delete(id); err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ReconcileGoal 手动触发单个目标的排期对账
func (a *API) ReconcileGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	goal, err := a.goals.Get(id)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	windowDays := defaultReconcileWindowDays
	if raw := c.Query("window_days"); raw != "" {
		if parsed, err := parsePositiveInt(raw); err == nil {
			windowDays = parsed
		} else {
			respondError(c, http.StatusBadRequest, "无效的窗口天数")
			return
		}
	}

	today := time.Now()
	result, err := a.schedules.Reconcile(goal, today, today.AddDate(0, 0, windowDays))
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"created": result.Created,
		"retired": result.Retired,
		"missed":  result.Missed,
	})
}

// ListGoalOccurrences 返回目标在日期区间内的排期实例
func (a *API) ListGoalOccurrences(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	if _, err := a.goals.Get(id); err != nil {
		handleGoalError(c, err)
		return
	}

	start, end, ok := parseRangeQuery(c)
	if !ok {
		return
	}

	occurrences, err := a.schedules.ListOccurrences(id, start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取排期实例失败")
		return
	}

	items := make([]gin.H, 0, len(occurrences))
	for _, occurrence := range occurrences {
		items = append(items, gin.H{
			"id":       occurrence.ID,
			"goal_id":  occurrence.GoalID,
			"date":     occurrence.Date.Format(dateFormat),
			"status":   occurrence.Status,
			"event_id": occurrence.EventID,
			"task_id":  occurrence.TaskID,
		})
	}

	c.JSON(http.StatusOK, gin.H{"occurrences": items})
}

func (a *API) parseGoalInput(c *gin.Context) (service.GoalInput, bool) {
	var payload goalPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return service.GoalInput{}, false
	}

	if payload.StartDate == "" {
		respondError(c, http.StatusBadRequest, "开始日期不能为空")
		return service.GoalInput{}, false
	}

	startDate, err := parseDate(payload.StartDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的开始日期")
		return service.GoalInput{}, false
	}

	endPtr, ok := parseOptionalDate(payload.EndDate)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的结束日期")
		return service.GoalInput{}, false
	}

	return service.GoalInput{
		UserID:               payload.UserID,
		PrimaryType:          payload.PrimaryType,
		SecondaryType:        payload.SecondaryType,
		Name:                 payload.Name,
		Description:          payload.Description,
		Status:               payload.Status,
		FrequencyUnit:        payload.Frequency,
		IntervalCount:        payload.Interval,
		ByWeekDay:            payload.ByWeekDay,
		StartDate:            startDate,
		EndDate:              endPtr,
		DayReminderTimeRange: payload.DayReminderTimeRange,
		DayReminderTimes:     payload.DayReminderTimes,
		DeadlineAlarms:       payload.DeadlineAlarms,
		TaskID:               payload.TaskID,
	}, true
}

func goalToPayload(goal db.Goal) gin.H {
	item := gin.H{
		"id":             goal.ID,
		"user_id":        goal.UserID,
		"primary_type":   goal.PrimaryType,
		"secondary_type": goal.SecondaryType,
		"name":           goal.Name,
		"description":    goal.Description,
		"status":         goal.Status,
		"frequency":      goal.FrequencyUnit,
		"interval":       goal.IntervalCount,
		"by_week_day":    db.SplitList(goal.ByWeekDay),
		"start_date":     goal.StartDate.Format(dateFormat),
		"task_id":        goal.TaskID,
	}

	if goal.EndDate != nil {
		item["end_date"] = goal.EndDate.Format(dateFormat)
	}
	if times := db.SplitList(goal.DayReminderTimes); len(times) > 0 {
		item["day_reminder_times"] = times
	}
	if ranges := db.SplitList(goal.DayReminderTimeRange); len(ranges) > 0 {
		item["day_reminder_time_range"] = ranges
	}
	if alarms := db.SplitList(goal.DeadlineAlarms); len(alarms) > 0 {
		item["deadline_alarms"] = alarms
	}

	return item
}

func handleGoalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGoalNotFound):
		respondError(c, http.StatusNotFound, "目标不存在")
	case errors.Is(err, recurrence.ErrInvalidRule):
		respondError(c, http.StatusBadRequest, "重复规则配置无效")
	case errors.Is(err, service.ErrGoalInvalid):
		respondError(c, http.StatusBadRequest, "目标字段不完整")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
