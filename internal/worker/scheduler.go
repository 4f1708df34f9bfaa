package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mirrorchyan/storefront/internal/logger"

	"github.com/robfig/cron/v3"
)

const (
	defaultWarmupSpec  = "@every 5m"
	defaultSweepSpec   = "@every 1m"
	sweepBatchLimit    = 200
	scheduledJobBudget = time.Minute
)

// CatalogWarmer 目录预热
type CatalogWarmer interface {
	Warm(ctx context.Context) error
}

// LedgerSweeper 台账超时清扫
type LedgerSweeper interface {
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

// SchedulerOptions 定时任务参数
type SchedulerOptions struct {
	WarmupSpec string
	SweepSpec  string
}

// Scheduler 定时任务服务：目录预热与台账清扫
// 队列关闭时超时任务不会投递，由清扫兜底。
type Scheduler struct {
	name    string
	cron    *cron.Cron
	warmer  CatalogWarmer
	sweeper LedgerSweeper
}

// NewScheduler 创建定时任务服务
func NewScheduler(warmer CatalogWarmer, sweeper LedgerSweeper, opts SchedulerOptions) (*Scheduler, error) {
	if warmer == nil && sweeper == nil {
		return nil, errors.New("no scheduled jobs")
	}
	cronLogger := cron.PrintfLogger(logger.StdLogger())
	s := &Scheduler{
		name:    "scheduler",
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		warmer:  warmer,
		sweeper: sweeper,
	}
	if warmer != nil {
		spec := strings.TrimSpace(opts.WarmupSpec)
		if spec == "" {
			spec = defaultWarmupSpec
		}
		if _, err := s.cron.AddFunc(spec, s.warm); err != nil {
			return nil, err
		}
	}
	if sweeper != nil {
		spec := strings.TrimSpace(opts.SweepSpec)
		if spec == "" {
			spec = defaultSweepSpec
		}
		if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name 服务名称
func (s *Scheduler) Name() string {
	if s == nil || s.name == "" {
		return "scheduler"
	}
	return s.name
}

// Start 启动定时任务，阻塞到 ctx 结束
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil || s.cron == nil {
		return errors.New("scheduler not initialized")
	}
	// 启动即预热一次，避免首个请求穿透到后端
	go s.warm()
	s.cron.Start()
	<-ctx.Done()
	return nil
}

// Stop 停止调度并等待运行中的任务结束
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil || s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) warm() {
	if s.warmer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), scheduledJobBudget)
	defer cancel()
	start := time.Now()
	if err := s.warmer.Warm(ctx); err != nil {
		logger.Warnw("scheduler_catalog_warm_failed", "error", err)
		return
	}
	logger.Debugw("scheduler_catalog_warmed", "elapsed_ms", time.Since(start).Milliseconds())
}

func (s *Scheduler) sweep() {
	if s.sweeper == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), scheduledJobBudget)
	defer cancel()
	expired, err := s.sweeper.ExpireOverdue(ctx, sweepBatchLimit)
	if err != nil {
		logger.Warnw("scheduler_ledger_sweep_failed", "expired", expired, "error", err)
		return
	}
	if expired > 0 {
		logger.Infow("scheduler_ledger_swept", "expired", expired)
	}
}
