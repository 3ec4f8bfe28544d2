package main

import (
	"github.com/gin-gonic/gin"
	"github.com/goalsync/internal/config"
	"github.com/goalsync/internal/db"
	"github.com/goalsync/internal/handler"
	"github.com/goalsync/internal/logging"
	"github.com/goalsync/internal/router"
	"github.com/goalsync/internal/service"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogConsole)

	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}

	api := handler.NewAPI(db.DB)

	// 后台对账任务：按 cron 周期物化排期并结算过期漏打
	sweeper := service.NewSweeper(api.Goals(), api.Schedules(), cfg.SyncCron, cfg.SyncWindowDays)
	if err := sweeper.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start sweeper")
	}
	defer sweeper.Stop()

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, router.Options{
		AutopilotRate:  cfg.AutopilotRate,
		AutopilotBurst: cfg.AutopilotBurst,
	})
	if err := r.Run(cfg.ListenAddr); err != nil {
		logger.Fatal().Err(err).Msg("failed to run server")
	}
}
