package handler

import (
	"github.com/goalsync/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db        *gorm.DB
	goals     *service.GoalService
	schedules *service.ScheduleService
	streaks   *service.StreakService
	stats     *service.StatService
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB) *API {
	streaks := service.NewStreakService(gdb)
	stats := service.NewStatService(gdb)
	schedules := service.NewScheduleService(gdb, streaks)
	goals := service.NewGoalService(gdb, schedules, streaks, stats)

	return &API{
		db:        gdb,
		goals:     goals,
		schedules: schedules,
		streaks:   streaks,
		stats:     stats,
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Goals 暴露目标服务，供后台任务复用同一套依赖
func (a *API) Goals() *service.GoalService {
	return a.goals
}

// Schedules 暴露排期服务
func (a *API) Schedules() *service.ScheduleService {
	return a.schedules
}
