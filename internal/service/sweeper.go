package service

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sweeper 按 cron 表达式周期性对账所有活跃目标
// 每轮以当天为起点向前物化 windowDays 天的排期实例
type Sweeper struct {
	goals      *GoalService
	schedules  *ScheduleService
	cron       *cron.Cron
	spec       string
	windowDays int
	logger     zerolog.Logger
}

// NewSweeper 构造后台对账任务，spec 为标准 cron 表达式
func NewSweeper(goals *GoalService, schedules *ScheduleService, spec string, windowDays int) *Sweeper {
	if windowDays < 1 {
		windowDays = 30
	}
	return &Sweeper{
		goals:      goals,
		schedules:  schedules,
		cron:       cron.New(),
		spec:       spec,
		windowDays: windowDays,
		logger:     log.With().Str("component", "sweeper").Logger(),
	}
}

// Start 注册并启动 cron 任务
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.RunOnce); err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	s.cron.Start()
	s.logger.Info().Str("spec", s.spec).Int("window_days", s.windowDays).Msg("sweeper started")
	return nil
}

// Stop 停止 cron 调度，已在执行中的一轮会跑完
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce 立即执行一轮全量对账
// 单个目标失败只记日志不中断，故障域限定在单键
func (s *Sweeper) RunOnce() {
	goals, err := s.goals.ListActive()
	if err != nil {
		s.logger.Error().Err(err).Msg("list active goals failed")
		return
	}

	today := time.Now()
	windowEnd := today.AddDate(0, 0, s.windowDays)

	var created, retired, missed int
	for i := range goals {
		result, err := s.schedules.Reconcile(&goals[i], today, windowEnd)
		if err != nil {
			s.logger.Error().Err(err).Uint("goal_id", goals[i].ID).Msg("reconcile failed")
			continue
		}
		created += result.Created
		retired += result.Retired
		missed += result.Missed
	}

	s.logger.Info().
		Int("goals", len(goals)).
		Int("created", created).
		Int("retired", retired).
		Int("missed", missed).
		Msg("sweep finished")
}
