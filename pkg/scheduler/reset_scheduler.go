// Package scheduler 提供周期性房间重置
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// ResetFunc 重置函数
type ResetFunc func(ctx context.Context) error

// ResetScheduler 按 cron 表达式周期性重置房间
type ResetScheduler struct {
	cron   *cron.Cron
	expr   string
	reset  ResetFunc
	logger *slog.Logger

	mu      sync.Mutex
	runs    int
	lastErr error

	ctx    context.Context
	cancel context.CancelFunc
}

// NewResetScheduler 创建调度器，expr 为标准 5 字段 cron 表达式或 @every 描述符
func NewResetScheduler(expr string, reset ResetFunc, logger *slog.Logger) (*ResetScheduler, error) {
	if reset == nil {
		return nil, fmt.Errorf("reset function is required")
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &ResetScheduler{
		cron:   cron.New(),
		expr:   expr,
		reset:  reset,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := s.cron.AddFunc(expr, s.run); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule reset: %w", err)
	}

	return s, nil
}

// Start 启动调度器
func (s *ResetScheduler) Start() {
	s.cron.Start()
	s.logger.Info("reset scheduler started", "cron_expr", s.expr)
}

// Stop 停止调度器，等待正在执行的重置结束
func (s *ResetScheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("reset scheduler stopped")
}

// Stats 返回已执行次数和最近一次错误
func (s *ResetScheduler) Stats() (runs int, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.lastErr
}

// run 执行一次重置
func (s *ResetScheduler) run() {
	s.logger.Info("scheduled room reset triggered")

	err := s.reset(s.ctx)

	s.mu.Lock()
	s.runs++
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled room reset failed", "error", err)
		return
	}
	s.logger.Info("scheduled room reset completed")
}
