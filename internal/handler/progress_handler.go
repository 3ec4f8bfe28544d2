package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goalsync/internal/db"
	"github.com/goalsync/internal/service"
)

type completionPayload struct {
	UserID        string `json:"user_id"`
	PrimaryType   string `json:"primary_type"`
	SecondaryType string `json:"secondary_type"`
	Date          string `json:"date"`
	Completed     *bool  `json:"completed"`
	CadenceDays   int    `json:"cadence_days"`
}

type statPayload struct {
	UserID        string   `json:"user_id"`
	PrimaryType   string   `json:"primary_type"`
	SecondaryType string   `json:"secondary_type"`
	Metric        string   `json:"metric"`
	Value         *float64 `json:"value"`
	Date          string   `json:"date"`
}

// RecordCompletion 记录一次打卡/漏打并返回最新连胜状态
// 乱序回填返回 409 并带 replay_required 标记，调用方应随后触发重放
func (a *API) RecordCompletion(c *gin.Context) {
	var payload completionPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if payload.Date == "" {
		respondError(c, http.StatusBadRequest, "打卡日期不能为空")
		return
	}
	if payload.Completed == nil {
		respondError(c, http.StatusBadRequest, "缺少 completed 字段")
		return
	}

	date, err := parseDate(payload.Date)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的打卡日期")
		return
	}

	state, err := a.streaks.RecordCompletion(service.CompletionInput{
		UserID:      payload.UserID,
		Key:         db.NewGoalKey(payload.PrimaryType, payload.SecondaryType),
		Date:        date,
		Completed:   *payload.Completed,
		CadenceDays: payload.CadenceDays,
		Source:      service.CompletionSourceManual,
	})
	if err != nil {
		handleProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"streak": streakToPayload(state)})
}

// ReplayStreak 从完成历史全量重建连胜状态
func (a *API) ReplayStreak(c *gin.Context) {
	var payload completionPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if payload.UserID == "" {
		respondError(c, http.StatusBadRequest, "缺少 user_id")
		return
	}

	state, err := a.streaks.Replay(payload.UserID,
		db.NewGoalKey(payload.PrimaryType, payload.SecondaryType), payload.CadenceDays)
	if err != nil {
		handleProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"streak": streakToPayload(state)})
}

// GetStreak 查询连胜状态
func (a *API) GetStreak(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "缺少 user_id")
		return
	}

	key := db.NewGoalKey(c.Query("primary_type"), c.Query("secondary_type"))
	state, err := a.streaks.Get(userID, key)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查询连胜失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"streak": streakToPayload(state)})
}

// RecordStat 记录一个统计数据点并返回最新聚合
func (a *API) RecordStat(c *gin.Context) {
	var payload statPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if payload.Date == "" {
		respondError(c, http.StatusBadRequest, "数据日期不能为空")
		return
	}
	if payload.Value == nil {
		respondError(c, http.StatusBadRequest, "缺少 value 字段")
		return
	}

	date, err := parseDate(payload.Date)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的数据日期")
		return
	}

	state, err := a.stats.Record(service.StatInput{
		UserID: payload.UserID,
		Key:    db.NewGoalKey(payload.PrimaryType, payload.SecondaryType),
		Metric: payload.Metric,
		Value:  *payload.Value,
		Date:   date,
	})
	if err != nil {
		handleProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stat": statToPayload(state)})
}

// GetStat 查询统计聚合
func (a *API) GetStat(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "缺少 user_id")
		return
	}
	metric := c.Query("metric")
	if metric == "" {
		respondError(c, http.StatusBadRequest, "缺少 metric")
		return
	}

	key := db.NewGoalKey(c.Query("primary_type"), c.Query("secondary_type"))
	state, err := a.stats.Get(userID, key, metric)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查询统计失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"stat": statToPayload(state)})
}

func streakToPayload(state *db.StreakState) gin.H {
	item := gin.H{
		"user_id":           state.UserID,
		"primary_type":      state.PrimaryType,
		"secondary_type":    state.SecondaryType,
		"current_streak":    state.CurrentStreak,
		"best_streak_value": state.BestStreakValue,
		"version":           state.Version,
	}

	if state.CurrentStreakStart != nil {
		item["current_streak_start"] = state.CurrentStreakStart.Format(dateFormat)
	}
	if state.LastSyncDate != nil {
		item["last_sync_date"] = state.LastSyncDate.Format(dateFormat)
	}
	if state.BestStreakStart != nil {
		item["best_streak_start"] = state.BestStreakStart.Format(dateFormat)
	}
	if state.BestStreakEnd != nil {
		item["best_streak_end"] = state.BestStreakEnd.Format(dateFormat)
	}
	if state.ArchivedAt != nil {
		item["archived"] = true
	}

	return item
}

func statToPayload(state *db.StatState) gin.H {
	item := gin.H{
		"user_id":        state.UserID,
		"primary_type":   state.PrimaryType,
		"secondary_type": state.SecondaryType,
		"metric":         state.Metric,
		"current_value":  state.CurrentValue,
		"max":            state.MaxValue,
		"min":            state.MinValue,
		"day_count":      state.DayCount,
		"version":        state.Version,
	}

	if state.CurrentDate != nil {
		item["current_date"] = state.CurrentDate.Format(dateFormat)
	}
	if state.MaxDate != nil {
		item["max_date"] = state.MaxDate.Format(dateFormat)
	}
	if state.MinDate != nil {
		item["min_date"] = state.MinDate.Format(dateFormat)
	}
	if state.ArchivedAt != nil {
		item["archived"] = true
	}

	return item
}

func handleProgressError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOutOfOrderCompletion):
		c.JSON(http.StatusConflict, gin.H{"error": "完成事件乱序，需要重放", "replay_required": true})
	case errors.Is(err, service.ErrCompletionInvalid), errors.Is(err, service.ErrStatInvalid):
		respondError(c, http.StatusBadRequest, "请求字段不完整")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
