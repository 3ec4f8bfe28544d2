package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// autopilotDeletePayload 兼容两种请求体：
// 扁平的 {"event_id": "..."} 和日历侧的 {"type": ..., "args": {"event_id": ...}}
type autopilotDeletePayload struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Args    struct {
		Type    string `json:"type"`
		EventID string `json:"event_id"`
	} `json:"args"`
}

func (p autopilotDeletePayload) eventID() string {
	if id := strings.TrimSpace(p.EventID); id != "" {
		return id
	}
	return strings.TrimSpace(p.Args.EventID)
}

// DeleteScheduledEvent 处理 autopilot 发起的排期取消
// 缺失 event_id 在任何状态变更之前拒绝；未找到实例按成功返回（幂等删除），
// 内部错误只返回映射后的提示，从不把原始错误对象序列化给调用方
func (a *API) DeleteScheduledEvent(c *gin.Context) {
	var payload autopilotDeletePayload
	if !bindJSON(c, &payload, "请求体不合法") {
		return
	}

	eventID := payload.eventID()
	if eventID == "" {
		respondError(c, http.StatusBadRequest, "缺少 event_id")
		return
	}

	result, err := a.schedules.ApplyExternalCancellation(eventID, time.Now())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "取消排期失败")
		return
	}

	message := "scheduled event deleted"
	if !result.Found {
		message = "scheduled event not found, nothing to delete"
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  message,
		"event_id": eventID,
		"found":    result.Found,
	})
}

// RateLimit 返回针对单一路由的限流中间件
// autopilot 侧会在故障时重试，这里限制突发而不是拒绝重试
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst < 1 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			respondError(c, http.StatusTooManyRequests, "请求过于频繁")
			c.Abort()
			return
		}
		c.Next()
	}
}
