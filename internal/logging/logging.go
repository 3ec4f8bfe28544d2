// Package logging 配置全局的 zerolog 结构化日志。
// 调试模式输出控制台友好格式，其余情况输出 JSON，级别由配置决定。
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const consoleTimeFormat = "2006-01-02T15:04:05"

// Setup 根据级别与模式初始化全局 Logger 并返回它
func Setup(level string, console bool) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if console {
		writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: consoleTimeFormat}
		logger = zerolog.New(writer)
	} else {
		logger = zerolog.New(os.Stderr)
	}

	logger = logger.Level(parsed).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.DefaultContextLogger = &logger
	log.Logger = logger

	return logger
}
