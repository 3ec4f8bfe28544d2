package router

import (
	"github.com/gin-gonic/gin"
	"github.com/goalsync/internal/handler"
)

// Options 控制路由行为的可调参数
type Options struct {
	AutopilotRate  float64
	AutopilotBurst int
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// autopilot 入站路径：第三方日历取消排期的唯一入口
	r.POST("/deleteScheduledEvent",
		handler.RateLimit(opts.AutopilotRate, opts.AutopilotBurst),
		api.DeleteScheduledEvent)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/goals", api.ListGoals)
		apiGroup.POST("/goals", api.CreateGoal)
		apiGroup.GET("/goals/:id", api.GetGoal)
		apiGroup.PUT("/goals/:id", api.UpdateGoal)
		apiGroup.DELETE("/goals/:id", api.DeleteGoal)
		apiGroup.POST("/goals/:id/deactivate", api.DeactivateGoal)
		apiGroup.POST("/goals/:id/reconcile", api.ReconcileGoal)
		apiGroup.GET("/goals/:id/occurrences", api.ListGoalOccurrences)

		apiGroup.POST("/completions", api.RecordCompletion)
		apiGroup.GET("/streaks", api.GetStreak)
		apiGroup.POST("/streaks/replay", api.ReplayStreak)

		apiGroup.POST("/stats", api.RecordStat)
		apiGroup.GET("/stats", api.GetStat)
	}

	return r
}
